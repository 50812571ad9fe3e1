package openvpn

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jgoulard/awsvpnclient-cli/common"
)

// ParseChallenge extracts the CRV1 challenge from probe output. The endpoint
// rejects the throwaway credentials with a control message of the form
//
//	AUTH: Received control message: AUTH_FAILED,CRV1:R:<sid>:<user>:<idp-url>
//
// where the sid must be echoed back in the credential response and the URL
// is the identity provider's sign-on page.
func ParseChallenge(output string) (*common.Challenge, error) {
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "AUTH_FAILED") {
			continue
		}
		idx := strings.Index(line, "CRV1:")
		if idx < 0 {
			continue
		}

		// flags : sid : user : challenge-text. The text is the IdP URL and
		// contains colons of its own, so the split is bounded.
		parts := strings.SplitN(line[idx+len("CRV1:"):], ":", 4)
		if len(parts) < 4 {
			return nil, fmt.Errorf("%w: malformed CRV1 challenge: %s", common.ErrEngine, strings.TrimSpace(line))
		}

		sid := parts[1]
		if sid == "" {
			return nil, fmt.Errorf("%w: CRV1 challenge carries no state id", common.ErrEngine)
		}

		raw := strings.TrimSpace(parts[3])
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, fmt.Errorf("%w: CRV1 challenge carries no sign-on URL: %q", common.ErrEngine, raw)
		}

		return &common.Challenge{SID: sid, URL: u.String()}, nil
	}

	return nil, fmt.Errorf("%w: endpoint did not issue a SAML challenge", common.ErrEngine)
}
