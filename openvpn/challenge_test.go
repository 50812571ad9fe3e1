package openvpn

import (
	"errors"
	"io"
	"testing"

	"github.com/jgoulard/awsvpnclient-cli/common"
)

const probeOutput = `Mon Aug 24 10:00:00 2026 OpenVPN 2.6.8 x86_64-pc-linux-gnu
Mon Aug 24 10:00:00 2026 TCP connection established with [AF_INET]3.1.2.3:443
Mon Aug 24 10:00:01 2026 SENT CONTROL [vpn.example.com]: 'PUSH_REQUEST' (status=1)
Mon Aug 24 10:00:01 2026 AUTH: Received control message: AUTH_FAILED,CRV1:R:instance-1/51915104/cb0fec18:b64user:https://idp.example.com/saml/sso?SAMLRequest=fZJNT%2BMwEIb%2FSuR7
Mon Aug 24 10:00:01 2026 SIGTERM[soft,auth-failure] received, process exiting
`

func TestParseChallenge(t *testing.T) {
	challenge, err := ParseChallenge(probeOutput)
	if err != nil {
		t.Fatalf("ParseChallenge() error = %v", err)
	}

	if want := "instance-1/51915104/cb0fec18"; challenge.SID != want {
		t.Errorf("SID = %q, want %q", challenge.SID, want)
	}
	if want := "https://idp.example.com/saml/sso?SAMLRequest=fZJNT%2BMwEIb%2FSuR7"; challenge.URL != want {
		t.Errorf("URL = %q, want %q", challenge.URL, want)
	}
}

func TestParseChallengeRejectsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{"empty output", ""},
		{"no auth failed line", "Initialization Sequence Completed\n"},
		{"auth failed without challenge", "AUTH: Received control message: AUTH_FAILED\n"},
		{"truncated challenge", "AUTH_FAILED,CRV1:R:sid-only\n"},
		{"empty sid", "AUTH_FAILED,CRV1:R::user:https://idp.example.com/sso\n"},
		{"no url", "AUTH_FAILED,CRV1:R:sid:user:not a url\n"},
		{"non-http url", "AUTH_FAILED,CRV1:R:sid:user:ftp://idp.example.com/sso\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseChallenge(tt.output)
			if !errors.Is(err, common.ErrEngine) {
				t.Errorf("ParseChallenge() error = %v, want %v", err, common.ErrEngine)
			}
		})
	}
}

func TestRepeatingReader(t *testing.T) {
	r := newRepeatingReader("N/A\nACS::35001\n")

	buf := make([]byte, 40)
	n, err := io.ReadFull(r, buf)
	if err != nil {
		t.Fatalf("ReadFull() error = %v", err)
	}
	if n != len(buf) {
		t.Fatalf("ReadFull() read %d bytes, want %d", n, len(buf))
	}

	want := "N/A\nACS::35001\nN/A\nACS::35001\nN/A\nACS::"
	if got := string(buf); got != want {
		t.Errorf("repeated content = %q, want %q", got, want)
	}
}
