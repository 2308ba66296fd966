package catalog

import (
	"net/http"
	"strings"

	"github.com/Azure/go-ntlmssp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"pbimirror/internal/config"
)

// Credentials are the operator's account on the report server.
type Credentials struct {
	Username string
	Password string
	// Domain is prepended as DOMAIN\user unless Username already names one.
	Domain string
}

// Principal is the user name handed to the NTLM negotiator.
func (c Credentials) Principal() string {
	if c.Domain == "" || strings.ContainsAny(c.Username, `\@`) {
		return c.Username
	}
	return c.Domain + `\` + c.Username
}

// String never reveals the password.
func (c Credentials) String() string {
	return c.Principal()
}

// NewHTTPClient returns an HTTP client that negotiates NTLM with creds on every
// request and applies the configured timeout and user agent.
func NewHTTPClient(cfg config.RemoteConfig, creds Credentials) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()

	var rt http.RoundTripper = ntlmssp.Negotiator{RoundTripper: base}
	rt = &credentialTransport{next: rt, creds: creds, userAgent: cfg.UserAgent}
	rt = otelhttp.NewTransport(rt)

	return &http.Client{
		Transport: rt,
		Timeout:   cfg.Timeout,
	}
}

// credentialTransport attaches the user agent and the basic-auth material the
// negotiator converts into an NTLM handshake.
type credentialTransport struct {
	next      http.RoundTripper
	creds     Credentials
	userAgent string
}

func (t *credentialTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if t.userAgent != "" {
		r.Header.Set("User-Agent", t.userAgent)
	}
	if t.creds.Username != "" {
		r.SetBasicAuth(t.creds.Principal(), t.creds.Password)
	}
	return t.next.RoundTrip(r)
}
