package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"lunaboxd/lib/htmlutil"
	"lunaboxd/lib/report"
	"lunaboxd/lib/telemetry"
)

var tracer = otel.Tracer("scrapers/letterboxd/core")

const (
	// DefaultBaseUrl is the site origin every request is pinned to.
	DefaultBaseUrl = "https://letterboxd.com/"

	loginPath  = "user/login.do/"
	logoutPath = "user/logout.do/"

	// csrfCookie holds the anti-forgery token the site expects back in
	// the form payload of every mutating request.
	csrfCookie = "com.xk72.webparts.csrf"
	csrfField  = "__csrf"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36 Edg/91.0.864.59"
)

// Client owns the authenticated session: the cookie jar, the
// anti-forgery token, and the on-disk session snapshot. Every request
// to the site goes through it, see Do.
type Client struct {
	BaseUrl  *url.URL
	Http     *resty.Client
	Username string

	password  string
	statePath string
	freshFor  time.Duration
	report    report.API
	metrics   *Metrics

	// mu serializes merge-token -> send -> classify -> persist. The jar
	// and token are shared mutable state, so requests must not
	// interleave even though the transport could handle it.
	mu sync.Mutex
}

type Options struct {
	// BaseUrl defaults to DefaultBaseUrl.
	BaseUrl  string
	Username string
	Password string
	// StatePath is the session snapshot location. Empty disables
	// persistence entirely.
	StatePath string
	// FreshFor is how long a persisted snapshot stays trustworthy,
	// one hour when unset.
	FreshFor time.Duration
	// Timeout applies to every individual request, 30s when unset.
	Timeout time.Duration
	// RequestsPerSecond throttles the session, 2 when unset. The site
	// tolerates polite scraping; hammering it earns the whole account
	// an IP ban.
	RequestsPerSecond float64
	// Report receives diagnostics, report.NoopAPI{} when unset.
	Report report.API
	// Metrics is optional; nil disables collection.
	Metrics *Metrics
}

func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.Username == "" {
		return nil, ValidationError{Reason: "username must not be empty"}
	}
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.FreshFor == 0 {
		opts.FreshFor = time.Hour
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 30
	}
	if opts.RequestsPerSecond == 0 {
		opts.RequestsPerSecond = 2
	}
	if opts.Report == nil {
		opts.Report = report.NoopAPI{}
	}

	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimSuffix(opts.BaseUrl, "/"))
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", userAgent)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(opts.Timeout)

	burst := int(opts.RequestsPerSecond)
	if burst < 2 {
		burst = 2
	}
	rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(client, "scrapers/letterboxd/http")

	c := &Client{
		BaseUrl:   baseUrl,
		Http:      client,
		Username:  opts.Username,
		password:  opts.Password,
		statePath: opts.StatePath,
		freshFor:  opts.FreshFor,
		report:    report.NewScopedAPI("letterboxd_session", opts.Report),
		metrics:   opts.Metrics,
	}
	return c, nil
}

// ObtainBaselineCookies issues one unauthenticated request to the site
// root so the server hands out its baseline cookies, in particular the
// anti-forgery token. It must run before Login.
func (c *Client) ObtainBaselineCookies(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:ObtainBaselineCookies")
	defer span.End()

	_, err := c.Get(ctx, "")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch site root")
		return err
	}
	if c.csrfToken() == "" {
		c.report.ReportWarning("obtain-baseline-cookies", "no anti-forgery cookie after root fetch")
	}
	return nil
}

// Login submits the credentials. The site answers with a JSON verdict,
// so a rejection surfaces as a SiteError from classification.
func (c *Client) Login(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	_, err := c.PostForm(ctx, loginPath, map[string]string{
		"username": c.Username,
		"password": c.password,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login rejected")
		return fmt.Errorf("login: %w", err)
	}

	slog.InfoContext(ctx, "logged in", "user", c.Username)
	return nil
}

// Logout ends the session on the server side. No-op when the session
// is not logged in.
func (c *Client) Logout(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:Logout")
	defer span.End()

	loggedIn, err := c.VerifyLoggedIn(ctx)
	if err != nil {
		return err
	}
	if !loggedIn {
		slog.DebugContext(ctx, "already logged out", "user", c.Username)
		return nil
	}

	_, err = c.PostForm(ctx, logoutPath, nil)
	if err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// VerifyLoggedIn fetches the user's own profile page and looks for the
// marker the site embeds in its scripts when the viewer is the
// authenticated owner of that username. "Not logged in" is a valid
// outcome, not an error; a missing profile page also reports false.
func (c *Client) VerifyLoggedIn(ctx context.Context) (bool, error) {
	ctx, span := tracer.Start(ctx, "client:VerifyLoggedIn")
	defer span.End()

	doc, err := c.GetDocument(ctx, c.Username+"/")
	if err != nil {
		var notFound NotFoundError
		if errors.As(err, &notFound) {
			slog.DebugContext(ctx, "profile page does not exist", "user", c.Username)
			return false, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch own profile")
		return false, err
	}

	marker := fmt.Sprintf(
		`person.username = "%s"; person.loggedin = true;`,
		strings.ToLower(c.Username),
	)
	scripts := strings.ToLower(htmlutil.ScriptText(doc))
	return strings.Contains(scripts, marker), nil
}
