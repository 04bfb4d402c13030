package inception

import (
	"fmt"
	"strings"
)

// RootOfTrustSentence is the fixed summary line every inception commit
// must carry. Verification matches it verbatim.
const RootOfTrustSentence = "Initialize repository and establish a SHA-1 root of trust"

// SignOffPrefix is the case-sensitive trailer prefix verification looks
// for, per the Developer Certificate of Origin convention.
const SignOffPrefix = "Signed-off-by:"

// AllowedSignersPath is the protected in-repo path through which the
// inception key delegates commit authority to additional signers.
const AllowedSignersPath = ".repo/config/verification/allowed_commit_signers"

// ComposeMessage builds the full inception commit message: the fixed
// root-of-trust sentence, a body describing the delegation model, and
// the sign-off trailer for the given identity.
func ComposeMessage(identity Identity) string {
	var sb strings.Builder
	sb.WriteString(RootOfTrustSentence)
	sb.WriteString("\n\n")
	sb.WriteString("This key also certifies future commits' integrity and origin. Other keys\n")
	sb.WriteString("can be authorized to add additional commits via the creation of a\n")
	sb.WriteString(AllowedSignersPath + " file. This\n")
	sb.WriteString("file must initially be signed by the repository's inception key, granting\n")
	sb.WriteString("those keys the authority to add future commit signers and modify the\n")
	sb.WriteString("allowed signers list.\n")
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "%s %s <%s>\n", SignOffPrefix, identity.Name, identity.Email)
	return sb.String()
}

// hasRootOfTrustSentence reports whether msg contains the fixed
// declarative sentence.
func hasRootOfTrustSentence(msg string) bool {
	return strings.Contains(msg, RootOfTrustSentence)
}

// hasSignOff reports whether msg contains a Signed-off-by trailer.
func hasSignOff(msg string) bool {
	return strings.Contains(msg, SignOffPrefix)
}
