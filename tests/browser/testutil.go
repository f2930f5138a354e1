// Package browser holds the Playwright scenarios of the Plextera Studio
// suite. All browser test files use BrowserTestEnv via SetupBrowserTestEnv(t).
//
// With PLEXTERA_STUDIO_URL unset the scenarios run against the local studio
// double; otherwise they run against that deployment.
package browser

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/plextera-e2e/internal/artifacts"
	"github.com/kuitang/plextera-e2e/internal/cleanup"
	"github.com/kuitang/plextera-e2e/internal/config"
	"github.com/kuitang/plextera-e2e/internal/fixtures"
	"github.com/kuitang/plextera-e2e/internal/ledger"
	"github.com/kuitang/plextera-e2e/internal/mailbox"
	"github.com/kuitang/plextera-e2e/internal/obs"
	"github.com/kuitang/plextera-e2e/internal/pages"
	"github.com/kuitang/plextera-e2e/internal/session"
	"github.com/kuitang/plextera-e2e/internal/studioapi"
	"github.com/kuitang/plextera-e2e/internal/studiofake"
)

const browserTestBucketName = "plextera-browser-artifacts"

var browserFixtureMu sync.Mutex
var browserSharedFixture *BrowserTestEnv

// BrowserTestEnv is the environment shared by every browser test: the
// studio under test, its API and inbox clients, the resource ledger and
// the browser.
type BrowserTestEnv struct {
	Config    *config.Config
	Data      *fixtures.Loader
	State     *fixtures.State
	API       *studioapi.Client
	Mail      *mailbox.Client
	Sessions  *session.Manager
	Ledger    *ledger.Ledger
	Artifacts *artifacts.Store
	Deleter   *cleanup.Dispatcher
	TempDir   string

	// Fake is the local studio double; nil when running against a deployment.
	Fake *studiofake.Server

	server       *httptest.Server
	fakeS3Server *httptest.Server

	pw        *playwright.Playwright
	browser   playwright.Browser
	browserMu sync.Mutex
}

// SetupBrowserTestEnv returns the shared environment, creating it on first
// use. Browser tests are skipped in -short mode.
func SetupBrowserTestEnv(t *testing.T) *BrowserTestEnv {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping browser test in short mode")
	}

	browserFixtureMu.Lock()
	defer browserFixtureMu.Unlock()

	if browserSharedFixture == nil {
		browserSharedFixture = createBrowserTestEnv(t)
	}
	return browserSharedFixture
}

func createBrowserTestEnv(t *testing.T) *BrowserTestEnv {
	t.Helper()

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}
	if !filepath.IsAbs(cfg.DataDir) {
		cfg.DataDir = filepath.Join(repositoryRoot(), cfg.DataDir)
	}

	tempDir, err := os.MkdirTemp("", "plextera-browser-*")
	if err != nil {
		t.Fatalf("Failed to create shared browser fixture temp dir: %v", err)
	}

	state := fixtures.NewState(cfg.DataDir)
	data := fixtures.NewLoader(cfg.DataDir).WithState(state)
	env := &BrowserTestEnv{Data: data, State: state, TempDir: tempDir}

	ledgerPath := cfg.LedgerPath
	if cfg.Hermetic() {
		fake, err := studiofake.New(studiofake.Options{
			OutboxDir: filepath.Join(tempDir, "outbox"),
		})
		if err != nil {
			t.Fatalf("Failed to create studio double: %v", err)
		}
		if err := fake.Seed(data); err != nil {
			t.Fatalf("Failed to seed studio double: %v", err)
		}
		env.Fake = fake
		env.server = httptest.NewServer(fake.Handler())
		cfg = cfg.WithStudio(env.server.URL, fake.MailAPIKey())
		ledgerPath = filepath.Join(tempDir, "ledger.db")
	}
	env.Config = cfg

	env.API = studioapi.New(studioapi.Options{
		AccountURL:   cfg.AccountAPIURL,
		DocumentsURL: cfg.DocumentsAPIURL,
		RPS:          cfg.APIRPS,
		Burst:        cfg.APIBurst,
	})
	env.Mail = mailbox.New(cfg.MailAPIURL, cfg.MailAPIKey)
	env.Sessions = session.NewManager(cfg, data, env.API)
	env.Deleter = &cleanup.Dispatcher{API: env.API, Tokens: env.Sessions, Mail: env.Mail}

	env.Ledger, err = ledger.Open(ledgerPath)
	if err != nil {
		t.Fatalf("Failed to open resource ledger: %v", err)
	}

	ctx := context.Background()
	switch {
	case cfg.Artifacts.Bucket != "":
		if env.Artifacts, err = artifacts.New(ctx, cfg.Artifacts); err != nil {
			t.Fatalf("Failed to create artifact store: %v", err)
		}
	case cfg.Hermetic():
		env.Artifacts, env.fakeS3Server = createMockS3(t, browserTestBucketName)
	}

	obs.Pkg("browser").Info("browser_env_ready",
		"studio", cfg.StudioURL, "hermetic", cfg.Hermetic(), "ledger", ledgerPath)
	return env
}

// finish sweeps what this run's tests could not delete and releases
// everything the environment holds. Leftovers of other runs are for
// studioctl sweep.
func (env *BrowserTestEnv) finish() {
	ctx := context.Background()
	log := obs.Pkg("browser")

	if env.Ledger != nil {
		if report, err := cleanup.SweepRun(ctx, env.Ledger, env.Deleter, obs.RunID()); err != nil {
			log.Warn("final_sweep_failed", "error", err)
		} else if len(report.Failed) > 0 {
			log.Warn("final_sweep_left_resources", "failed", len(report.Failed))
		}
		_ = env.Ledger.Close()
	}
	if env.Config != nil && !env.Config.Hermetic() {
		if err := env.State.Persist(); err != nil {
			log.Error("persist_credentials_failed", "error", err)
		}
	}
	if env.browser != nil {
		_ = env.browser.Close()
	}
	if env.pw != nil {
		_ = env.pw.Stop()
	}
	if env.API != nil {
		env.API.Close()
	}
	if env.server != nil {
		env.server.Close()
	}
	if env.Fake != nil {
		env.Fake.Close()
	}
	if env.fakeS3Server != nil {
		env.fakeS3Server.Close()
	}
	if env.TempDir != "" {
		_ = os.RemoveAll(env.TempDir)
	}
}

func cleanupSharedBrowserTestEnv() {
	browserFixtureMu.Lock()
	defer browserFixtureMu.Unlock()
	if browserSharedFixture == nil {
		return
	}
	browserSharedFixture.finish()
	browserSharedFixture = nil
}

// =============================================================================
// S3 mock
// =============================================================================

func createMockS3(t *testing.T, bucketName string) (*artifacts.Store, *httptest.Server) {
	t.Helper()

	faker := gofakes3.New(s3mem.New())
	ts := httptest.NewServer(faker.Server())

	ctx := context.Background()
	sdkConfig, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("test-key", "test-secret", ""),
		),
	)
	if err != nil {
		t.Fatalf("Failed to load AWS config: %v", err)
	}

	s3SDK := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(ts.URL)
		o.UsePathStyle = true
	})
	if _, err := s3SDK.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucketName)}); err != nil {
		t.Fatalf("Failed to create mock S3 bucket: %v", err)
	}
	return artifacts.NewFromS3Client(s3SDK, bucketName), ts
}

func repositoryRoot() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		panic("Failed to resolve repository root for test utilities")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
}

// =============================================================================
// Browser lifecycle helpers
// =============================================================================

// InitBrowser starts Playwright and launches Chromium. Skips the test if
// either is not available.
func (env *BrowserTestEnv) InitBrowser(t *testing.T) {
	t.Helper()

	env.browserMu.Lock()
	defer env.browserMu.Unlock()

	if env.browser != nil {
		return
	}

	pw, err := playwright.Run()
	if err != nil {
		t.Skip("Playwright not available:", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(env.Config.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		t.Skip("Could not launch browser:", err)
	}
	env.pw = pw
	env.browser = browser
}

// NewContext creates a browser context that is closed when the test ends.
func (env *BrowserTestEnv) NewContext(t *testing.T) playwright.BrowserContext {
	t.Helper()

	bctx, err := env.browser.NewContext(playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(true),
	})
	if err != nil {
		t.Fatalf("could not create browser context: %v", err)
	}
	bctx.SetDefaultTimeout(env.Config.ActionTimeoutMS())
	bctx.SetDefaultNavigationTimeout(env.Config.ActionTimeoutMS())
	t.Cleanup(func() { _ = bctx.Close() })
	return bctx
}

// Studio opens a fresh page bound to the studio under test. With a role
// the page starts signed in as that role through the session cookie; with
// an empty role it starts anonymous. On failure a full-page screenshot is
// uploaded to the artifact store.
func (env *BrowserTestEnv) Studio(t *testing.T, role string) *pages.Studio {
	t.Helper()

	env.InitBrowser(t)
	bctx := env.NewContext(t)
	if role != "" {
		if _, err := env.Sessions.Authenticate(env.Context(t), bctx, role); err != nil {
			t.Fatalf("Failed to authenticate as %s: %v", role, err)
		}
	}
	page, err := bctx.NewPage()
	if err != nil {
		t.Fatalf("could not create page: %v", err)
	}
	t.Cleanup(func() { env.captureFailure(t, page) })
	return pages.NewStudio(page, env.Config.StudioURL, env.Config.ActionTimeout)
}

func (env *BrowserTestEnv) captureFailure(t *testing.T, page playwright.Page) {
	if !t.Failed() || env.Artifacts == nil {
		return
	}
	png, err := page.Screenshot(playwright.PageScreenshotOptions{FullPage: playwright.Bool(true)})
	if err != nil {
		t.Logf("Failed to capture screenshot: %v", err)
		return
	}
	key, err := env.Artifacts.SaveScreenshot(env.Context(t), t.Name(), png)
	if err != nil {
		t.Logf("Failed to upload screenshot: %v", err)
		return
	}
	t.Logf("Screenshot of %s saved as %s", page.URL(), key)
}

// =============================================================================
// Fixture helpers
// =============================================================================

// Context returns a context carrying the test name for log correlation.
func (env *BrowserTestEnv) Context(t *testing.T) context.Context {
	return obs.WithTest(context.Background(), t.Name())
}

// Tracker returns a cleanup tracker bound to t.
func (env *BrowserTestEnv) Tracker(t *testing.T) *cleanup.Tracker {
	return cleanup.NewTracker(t, env.Ledger, env.Deleter)
}

// Credential returns the credentials of a fixture role, including a
// password rotated earlier in the run.
func (env *BrowserTestEnv) Credential(t *testing.T, role string) fixtures.Credential {
	t.Helper()
	cred, err := env.Data.Credential(role)
	if err != nil {
		t.Fatalf("Failed to load credentials of %s: %v", role, err)
	}
	return cred
}

// InvalidValues loads an invalid-input table.
func (env *BrowserTestEnv) InvalidValues(t *testing.T, key string) []fixtures.InvalidValue {
	t.Helper()
	values, err := env.Data.InvalidValues(key)
	if err != nil {
		t.Fatalf("Failed to load %s: %v", key, err)
	}
	return values
}

// CreateInbox creates a disposable inbox that is deleted when the test ends.
func (env *BrowserTestEnv) CreateInbox(t *testing.T) mailbox.Inbox {
	t.Helper()
	inbox, err := env.Mail.CreateInbox(env.Context(t))
	if err != nil {
		t.Fatalf("Failed to create inbox: %v", err)
	}
	env.Tracker(t).Track(ledger.KindInbox, inbox.ID, "")
	return inbox
}

// WaitForEmail returns the latest unread email of an inbox.
func (env *BrowserTestEnv) WaitForEmail(t *testing.T, inboxID string) *mailbox.Email {
	t.Helper()
	email, err := env.Mail.WaitForLatestEmail(env.Context(t), inboxID, env.Config.InboxTimeout)
	if err != nil {
		t.Fatalf("No email in inbox %s: %v", inboxID, err)
	}
	t.Logf("Received %q: %s", email.Subject, env.Mail.Preview(email.Body))
	return email
}

// UniqueName returns prefix with a short random suffix, for resources that
// must not collide with leftovers of other runs.
func UniqueName(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
}

// FixturePath returns the absolute path of a file in the data directory.
func (env *BrowserTestEnv) FixturePath(file string) string {
	return env.Data.Path(file)
}
