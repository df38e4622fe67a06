package rosterservice

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"rosteriq-backend/lib/roster"
	"rosteriq-backend/lib/scrapers/netline/news"

	"connectrpc.com/connect"
)

const (
	RosterServiceName = "rosteriq.roster.v1.RosterService"
	// GetRosterProcedure is the full path of the GetRoster rpc.
	GetRosterProcedure = "/rosteriq.roster.v1.RosterService/GetRoster"
)

type GetRosterRequest struct {
	EmployeeId  string `json:"employeeId"`
	Password    string `json:"password"`
	Airline     string `json:"airline,omitempty"`
	TargetMonth int    `json:"targetMonth,omitempty"`
	TargetYear  int    `json:"targetYear,omitempty"`
	// bypass the roster cache
	Refresh bool `json:"refresh,omitempty"`
	// where roster changes are reported, nothing is sent when empty
	NotifyEmail string `json:"notifyEmail,omitempty"`
	// also read the portal news, such requests are never served from cache
	News bool `json:"news,omitempty"`
}

func (r GetRosterRequest) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("employee_id", r.EmployeeId),
		slog.String("airline", r.Airline),
		slog.Int("target_month", r.TargetMonth),
		slog.Int("target_year", r.TargetYear),
		slog.Bool("news", r.News),
	)
}

type ErrorKind string

const (
	ErrorAuth        ErrorKind = "auth"
	ErrorNavigation  ErrorKind = "navigation"
	ErrorRateLimited ErrorKind = "rate_limited"
	ErrorInvalid     ErrorKind = "invalid"
	ErrorInternal    ErrorKind = "internal"
)

type OutcomeError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Url     string    `json:"url,omitempty"`
	Title   string    `json:"title,omitempty"`
}

// GetRosterResponse is returned for every request, failures included.
type GetRosterResponse struct {
	Success   bool           `json:"success"`
	Duties    []roster.Duty  `json:"duties"`
	Summary   roster.Summary `json:"summary"`
	Notes     []string       `json:"notes"`
	Cached    bool           `json:"cached"`
	FetchedAt string         `json:"fetchedAt,omitempty"`
	News      []news.Item    `json:"news,omitempty"`
	Error     *OutcomeError  `json:"error,omitempty"`
}

// jsonCodec lets connect carry the plain go request and response types.
type jsonCodec struct{}

func (jsonCodec) Name() string {
	return "json"
}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// NewHandler returns the path and handler serving the roster rpc.
func NewHandler(service Service, options ...connect.HandlerOption) (string, http.Handler) {
	options = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, options...)
	return GetRosterProcedure, connect.NewUnaryHandler(
		GetRosterProcedure,
		service.GetRoster,
		options...,
	)
}

func NewClient(httpClient connect.HTTPClient, baseUrl string, options ...connect.ClientOption) *connect.Client[GetRosterRequest, GetRosterResponse] {
	options = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, options...)
	return connect.NewClient[GetRosterRequest, GetRosterResponse](
		httpClient,
		strings.TrimRight(baseUrl, "/")+GetRosterProcedure,
		options...,
	)
}
