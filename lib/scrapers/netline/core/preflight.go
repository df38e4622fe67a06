package core

import (
	"context"
	"net/http/cookiejar"
	"time"

	"rosteriq-backend/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

type Preflight struct {
	http *resty.Client
}

// NewPreflight creates a plain http client used to check that a portal is
// reachable before paying for a browser launch. `output` may be nil.
func NewPreflight(output restyutil.InstrumentOutput) (Preflight, error) {
	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return Preflight{}, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetTimeout(time.Second * 15)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))

	restyutil.InstrumentClient(client, tracer, output)

	return Preflight{http: client}, nil
}

// Check performs a GET against the portal. Any http response counts as
// reachable, only transport failures (dns, refused, timeout) are
// reported as a NavigationError.
func (p Preflight) Check(ctx context.Context, portal Portal) error {
	ctx, span := tracer.Start(ctx, "Preflight")
	defer span.End()

	res, err := p.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(portal.Url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "portal unreachable")
		return &NavigationError{Url: portal.Url, Err: err}
	}
	if res.RawBody() != nil {
		res.RawBody().Close()
	}
	return nil
}
