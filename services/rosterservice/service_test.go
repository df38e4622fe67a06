package rosterservice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"rosteriq-backend/lib/browser"
	"rosteriq-backend/lib/browser/browsertest"
	"rosteriq-backend/lib/scrapers/netline/news"
	"rosteriq-backend/lib/testutil"
	"rosteriq-backend/services/rosterservice/db"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

type recordedChange struct {
	recipient string
	change    Change
}

type fakeNotifier struct {
	lock    sync.Mutex
	changes []recordedChange
}

func (n *fakeNotifier) NotifyChange(ctx context.Context, recipient string, change Change) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.changes = append(n.changes, recordedChange{recipient: recipient, change: change})
	return nil
}

func setupService(t *testing.T, launcher browser.Launcher, notifier Notifier, options Options) Service {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "roster",
		DbSchema: db.Schema,
	})
	t.Cleanup(cleanup)

	pipeline := testPipeline(launcher)
	pipeline.Options.SkipEnrich = true
	service := NewService(res.DB, pipeline, notifier, options)
	service.cache.cost = bcrypt.MinCost
	return service
}

var decemberRequest = GetRosterRequest{
	EmployeeId:  "E1234",
	Password:    "hunter2",
	Airline:     "test",
	TargetMonth: 12,
	TargetYear:  2025,
	NotifyEmail: "pilot@example.com",
}

func TestFetchCached(t *testing.T) {
	launcher := &portalLauncher{script: testScript()}
	service := setupService(t, launcher, nil, Options{})
	ctx := context.Background()

	res := service.Fetch(ctx, decemberRequest)
	require.True(t, res.Success, res.Error)
	require.False(t, res.Cached)
	require.Len(t, res.Duties, 2)
	require.Equal(t, 1, res.Summary.ReserveCount)
	require.NotEmpty(t, res.FetchedAt)

	res = service.Fetch(ctx, decemberRequest)
	require.True(t, res.Success)
	require.True(t, res.Cached)
	require.Len(t, res.Duties, 2)
	require.Equal(t, 1, launcher.launches)

	entry, found, err := service.Cache().Get(ctx, CacheKey{
		EmployeeId: "E1234",
		Airline:    "TEST",
		Year:       2025,
		Month:      time.December,
	})
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, entry.Duties, 2)
	require.NotEmpty(t, entry.Hash)
	require.NotContains(t, entry.Verifier, "hunter2")
	require.True(t, service.Cache().Verify(entry, "hunter2"))
	require.False(t, service.Cache().Verify(entry, "hunter3"))
}

func TestFetchCachedWrongPassword(t *testing.T) {
	launcher := &portalLauncher{script: testScript()}
	service := setupService(t, launcher, nil, Options{})
	ctx := context.Background()

	res := service.Fetch(ctx, decemberRequest)
	require.True(t, res.Success, res.Error)

	req := decemberRequest
	req.Password = "not-hunter2"
	res = service.Fetch(ctx, req)
	require.False(t, res.Success)
	require.False(t, res.Cached)
	require.Equal(t, ErrorAuth, res.Error.Kind)
	require.Empty(t, res.Duties)
	require.Equal(t, 2, launcher.launches)

	// the right password is still served from cache
	res = service.Fetch(ctx, decemberRequest)
	require.True(t, res.Success)
	require.True(t, res.Cached)
	require.Equal(t, 2, launcher.launches)
}

func TestFetchExpired(t *testing.T) {
	launcher := &portalLauncher{script: testScript()}
	service := setupService(t, launcher, nil, Options{})
	ctx := context.Background()

	res := service.Fetch(ctx, decemberRequest)
	require.True(t, res.Success)

	service.cache.now = func() time.Time {
		return time.Now().Add(DefaultCacheTTL + time.Minute)
	}
	res = service.Fetch(ctx, decemberRequest)
	require.True(t, res.Success)
	require.False(t, res.Cached)
	require.Equal(t, 2, launcher.launches)
}

func TestFetchChange(t *testing.T) {
	launcher := &portalLauncher{script: testScript()}
	notifier := &fakeNotifier{}
	service := setupService(t, launcher, notifier, Options{})
	ctx := context.Background()

	res := service.Fetch(ctx, decemberRequest)
	require.True(t, res.Success)
	require.Empty(t, notifier.changes)

	launcher.script.Responses = func(month time.Month, year int) []browser.ResponseEvent {
		if month != time.December {
			return nil
		}
		return []browser.ResponseEvent{rosterResponse(`{"result": [
			{"id": "RES01", "code": "RES01", "date": "2025-12-03", "startTime": "2025-12-03T04:00:00"},
			{"id": "GB777", "flightNumber": "GB777", "date": "2025-12-18", "departure": "CVG", "arrival": "ANC"}
		]}`)}
	}
	req := decemberRequest
	req.Refresh = true
	res = service.Fetch(ctx, req)
	require.True(t, res.Success, res.Error)
	require.False(t, res.Cached)
	require.Len(t, res.Notes, 1)
	require.Contains(t, res.Notes[0], "pilot@example.com")

	require.Len(t, notifier.changes, 1)
	recorded := notifier.changes[0]
	require.Equal(t, "pilot@example.com", recorded.recipient)
	require.Len(t, recorded.change.Added, 1)
	require.Equal(t, "GB777", recorded.change.Added[0].Id)
	require.Len(t, recorded.change.Removed, 1)
	require.Equal(t, "GB123", recorded.change.Removed[0].Id)
	require.NotEqual(t, recorded.change.PreviousHash, recorded.change.Hash)

	changes, err := service.cache.qry.GetRosterChanges(ctx, db.GetRosterChangesParams{
		EmployeeID: "E1234",
		Airline:    "TEST",
	})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.Equal(t, recorded.change.Hash, changes[0].Hash)

	// the same roster again is not a change
	res = service.Fetch(ctx, req)
	require.True(t, res.Success)
	require.Len(t, notifier.changes, 1)
}

func TestFetchNews(t *testing.T) {
	script := testScript()
	script.News = []browsertest.NewsEntry{{Title: "Deicing update", Body: "Type IV fluid only at CVG."}}
	launcher := &portalLauncher{script: script}
	service := setupService(t, launcher, nil, Options{})
	ctx := context.Background()

	res := service.Fetch(ctx, decemberRequest)
	require.True(t, res.Success, res.Error)
	require.Empty(t, res.News)

	req := decemberRequest
	req.News = true
	res = service.Fetch(ctx, req)
	require.True(t, res.Success, res.Error)
	require.False(t, res.Cached)
	require.Equal(t, []news.Item{{Title: "Deicing update", Content: "Type IV fluid only at CVG."}}, res.News)
	require.Equal(t, 2, launcher.launches)
}

func TestFetchEmptyNotStored(t *testing.T) {
	script := testScript()
	script.Responses = nil
	launcher := &portalLauncher{script: script}
	service := setupService(t, launcher, nil, Options{})
	ctx := context.Background()

	res := service.Fetch(ctx, decemberRequest)
	require.True(t, res.Success)
	require.Empty(t, res.Duties)
	require.NotEmpty(t, res.Notes)

	_, found, err := service.Cache().Get(ctx, CacheKey{
		EmployeeId: "E1234",
		Airline:    "TEST",
		Year:       2025,
		Month:      time.December,
	})
	require.NoError(t, err)
	require.False(t, found)
}

func TestFetchRateLimited(t *testing.T) {
	launcher := &portalLauncher{script: testScript()}
	service := setupService(t, launcher, nil, Options{
		RateLimit: rate.Every(time.Hour),
		RateBurst: 1,
	})
	ctx := context.Background()

	res := service.Fetch(ctx, decemberRequest)
	require.True(t, res.Success)

	req := decemberRequest
	req.Refresh = true
	res = service.Fetch(ctx, req)
	require.False(t, res.Success)
	require.Equal(t, ErrorRateLimited, res.Error.Kind)
	require.Equal(t, 1, launcher.launches)

	// other employees have their own budget
	req.EmployeeId = "E9999"
	res = service.Fetch(ctx, req)
	require.Equal(t, ErrorAuth, res.Error.Kind)
}

func TestFetchErrors(t *testing.T) {
	cases := []struct {
		name     string
		launcher browser.Launcher
		req      func(GetRosterRequest) GetRosterRequest
		kind     ErrorKind
		url      string
	}{
		{
			name:     "missing password",
			launcher: &portalLauncher{script: testScript()},
			req: func(r GetRosterRequest) GetRosterRequest {
				r.Password = ""
				return r
			},
			kind: ErrorInvalid,
		},
		{
			name:     "blank employee id",
			launcher: &portalLauncher{script: testScript()},
			req: func(r GetRosterRequest) GetRosterRequest {
				r.EmployeeId = "   "
				return r
			},
			kind: ErrorInvalid,
		},
		{
			name:     "wrong password",
			launcher: &portalLauncher{script: testScript()},
			req: func(r GetRosterRequest) GetRosterRequest {
				r.Password = "wrong"
				return r
			},
			kind: ErrorAuth,
			url:  browsertest.SignInUrl,
		},
		{
			name:     "unreachable portal",
			launcher: &browsertest.Launcher{Page: browsertest.NewPage()},
			req: func(r GetRosterRequest) GetRosterRequest {
				return r
			},
			kind: ErrorNavigation,
			url:  portalUrl,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			service := setupService(t, c.launcher, nil, Options{})
			res := service.Fetch(context.Background(), c.req(decemberRequest))
			require.False(t, res.Success)
			require.NotNil(t, res.Error)
			require.Equal(t, c.kind, res.Error.Kind)
			require.Equal(t, c.url, res.Error.Url)
			require.NotNil(t, res.Duties)
			require.NotContains(t, res.Error.Message, "hunter2")
		})
	}
}

func testServer(t *testing.T, service Service) *httptest.Server {
	r := chi.NewRouter()
	path, handler := NewHandler(service)
	r.Handle(path, handler)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func TestHandler(t *testing.T) {
	launcher := &portalLauncher{script: testScript()}
	server := testServer(t, setupService(t, launcher, nil, Options{}))

	client := NewClient(http.DefaultClient, server.URL)
	res, err := client.CallUnary(context.Background(), connect.NewRequest(&decemberRequest))
	require.NoError(t, err)
	require.True(t, res.Msg.Success)
	require.Len(t, res.Msg.Duties, 2)

	req := decemberRequest
	req.Password = "wrong"
	req.Refresh = true
	res, err = client.CallUnary(context.Background(), connect.NewRequest(&req))
	require.NoError(t, err)
	require.False(t, res.Msg.Success)
	require.Equal(t, ErrorAuth, res.Msg.Error.Kind)
}

func TestHandlerJSON(t *testing.T) {
	launcher := &portalLauncher{script: testScript()}
	server := testServer(t, setupService(t, launcher, nil, Options{}))

	var body map[string]any
	res, err := resty.New().R().
		SetHeader("content-type", "application/json").
		SetBody(map[string]any{
			"employeeId":  "E1234",
			"password":    "hunter2",
			"airline":     "TEST",
			"targetMonth": 12,
			"targetYear":  2025,
		}).
		SetResult(&body).
		Post(server.URL + GetRosterProcedure)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode(), res.String())

	for _, key := range []string{"success", "duties", "summary", "notes", "cached"} {
		require.Contains(t, body, key)
	}
	require.Equal(t, true, body["success"])
	require.NotContains(t, body, "error")

	duties := body["duties"].([]any)
	require.Len(t, duties, 2)
	first := duties[0].(map[string]any)
	for _, key := range []string{"id", "type", "date", "legs"} {
		require.Contains(t, first, key)
	}
}
