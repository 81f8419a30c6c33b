package usecase

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/jaennil/guide_helper/backend/geocache/internal/entity"
	"github.com/jaennil/guide_helper/backend/geocache/internal/infrastructure/upstream"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/config"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// recordingTransport answers every request with handler and remembers the URLs it saw.
type recordingTransport struct {
	mu      sync.Mutex
	urls    []*url.URL
	handler func(*http.Request) (*http.Response, error)
}

func (rt *recordingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	rt.mu.Lock()
	rt.urls = append(rt.urls, r.URL)
	rt.mu.Unlock()
	return rt.handler(r)
}

func (rt *recordingTransport) calls() []*url.URL {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return append([]*url.URL(nil), rt.urls...)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func testUpstreamConfig() config.Upstream {
	return config.Upstream{
		Timeout:          2 * time.Second,
		UserAgent:        "geocache-test",
		ElevationURL:     "https://elevation.test/v1/srtm90m",
		WaterwaysURL:     "https://hydro.test/arcgis/rest/services/nhd/MapServer",
		AirportsURL:      "https://airports.test/FeatureServer/0/query",
		AllowedDomains:   []string{"raw.githubusercontent.com", "github.com", "data.pnnl.gov", "im3.pnnl.gov"},
		MaxResponseBytes: 1 << 20,
		BreakerFailures:  5,
		BreakerTimeout:   time.Minute,
	}
}

func newAggregation(rt http.RoundTripper) *AggregationUseCase {
	cfg := testUpstreamConfig()
	client := upstream.NewClient(cfg, &http.Client{Transport: rt}, nil, logger.NewNop())
	return NewAggregationUseCase(client, cfg, logger.NewNop())
}

var testBox = entity.BBox{MinLat: 40.5, MinLon: -74.25, MaxLat: 40.9, MaxLon: -73.7}

func TestWaterwaysToleratesOneFailedLayer(t *testing.T) {
	rt := &recordingTransport{handler: func(r *http.Request) (*http.Response, error) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/1/query"):
			return jsonResponse(200, `{"features":[{"attributes":{"gnis_name":"Hudson"}}]}`), nil
		case strings.HasSuffix(r.URL.Path, "/6/query"):
			return jsonResponse(200, `{"features":[{"attributes":{"gnis_name":"Bronx River"}},{"attributes":{"gnis_name":"Harlem"}}]}`), nil
		case strings.HasSuffix(r.URL.Path, "/3/query"):
			return nil, errors.New("connection reset by peer")
		case strings.HasSuffix(r.URL.Path, "/5/query"):
			return jsonResponse(200, `{"features":[{"attributes":{"ftype":466}}]}`), nil
		}
		return jsonResponse(404, `{}`), nil
	}}

	features := newAggregation(rt).Waterways(context.Background(), testBox)

	require.Len(t, features, 4)
	layers := make([]string, 0, len(features))
	for _, f := range features {
		var layer string
		require.NoError(t, json.Unmarshal(f["layerType"], &layer))
		layers = append(layers, layer)
		assert.Contains(t, f, "attributes")
	}
	assert.Equal(t, []string{"rivers", "rivers_detailed", "rivers_detailed", "areas"}, layers)
	assert.Len(t, rt.calls(), 4)
}

func TestWaterwaysQueryParameters(t *testing.T) {
	rt := &recordingTransport{handler: func(r *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"features":[]}`), nil
	}}

	features := newAggregation(rt).Waterways(context.Background(), testBox)
	assert.NotNil(t, features)
	assert.Empty(t, features)

	calls := rt.calls()
	require.Len(t, calls, 4)
	for _, u := range calls {
		q := u.Query()
		assert.Equal(t, "-74.25,40.5,-73.7,40.9", q.Get("geometry"))
		assert.Equal(t, "esriGeometryEnvelope", q.Get("geometryType"))
		assert.Equal(t, "4326", q.Get("inSR"))
		assert.Equal(t, "4326", q.Get("outSR"))
		assert.Equal(t, "json", q.Get("f"))
		assert.Equal(t, "true", q.Get("returnGeometry"))
		assert.True(t, strings.HasPrefix(u.Path, "/arcgis/rest/services/nhd/MapServer/"))
		if strings.HasSuffix(u.Path, "/3/query") || strings.HasSuffix(u.Path, "/5/query") {
			assert.Equal(t, areaFields, q.Get("outFields"))
		} else {
			assert.Equal(t, flowlineFields, q.Get("outFields"))
		}
	}
}

func TestWaterwaysAllLayersFail(t *testing.T) {
	rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(500, `oops`), nil
	})

	features := newAggregation(rt).Waterways(context.Background(), testBox)
	assert.NotNil(t, features)
	assert.Empty(t, features)
}

func TestElevation(t *testing.T) {
	rt := &recordingTransport{handler: func(r *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"results":[{"elevation":10}],"status":"OK"}`), nil
	}}

	body, err := newAggregation(rt).Elevation(context.Background(), []entity.Location{
		{Lat: 40.7128, Lon: -74.006},
		{Lat: 41, Lon: -73.5},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"results":[{"elevation":10}],"status":"OK"}`, string(body))

	calls := rt.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "40.7128,-74.006|41,-73.5", calls[0].Query().Get("locations"))
	assert.Equal(t, "elevation.test", calls[0].Host)
}

func TestElevationValidation(t *testing.T) {
	uc := newAggregation(roundTripFunc(func(*http.Request) (*http.Response, error) {
		t.Fatal("no outbound call expected")
		return nil, nil
	}))

	_, err := uc.Elevation(context.Background(), nil)
	assert.True(t, entity.IsValidation(err))

	_, err = uc.Elevation(context.Background(), make([]entity.Location, MaxElevationLocations+1))
	assert.True(t, entity.IsValidation(err))
}

func TestElevationPropagatesUpstreamStatus(t *testing.T) {
	uc := newAggregation(roundTripFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(429, `{"error":"Too many requests"}`), nil
	}))

	_, err := uc.Elevation(context.Background(), []entity.Location{{Lat: 1, Lon: 1}})
	var ue *entity.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 429, ue.StatusCode)
}

func TestAirports(t *testing.T) {
	rt := &recordingTransport{handler: func(r *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"features":[{"attributes":{"IDENT":"JFK"}}]}`), nil
	}}

	features, err := newAggregation(rt).Airports(context.Background(), testBox)
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.JSONEq(t, `{"IDENT":"JFK"}`, string(features[0]["attributes"]))

	q := rt.calls()[0].Query()
	assert.Equal(t, "1=1", q.Get("where"))
	assert.Equal(t, airportFields, q.Get("outFields"))
	assert.JSONEq(t, `{"xmin":-74.25,"ymin":40.5,"xmax":-73.7,"ymax":40.9,"spatialReference":{"wkid":4326}}`, q.Get("geometry"))
}

func TestAirportsEmbeddedErrorIsEmpty(t *testing.T) {
	uc := newAggregation(roundTripFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"error":{"code":400,"message":"Invalid geometry"}}`), nil
	}))

	features, err := uc.Airports(context.Background(), testBox)
	require.NoError(t, err)
	assert.NotNil(t, features)
	assert.Empty(t, features)
}

func TestAirportsPropagatesUpstreamStatus(t *testing.T) {
	uc := newAggregation(roundTripFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(503, ``), nil
	}))

	_, err := uc.Airports(context.Background(), testBox)
	var ue *entity.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 503, ue.StatusCode)
}

func TestProxyRejectsDisallowedHostWithoutCalling(t *testing.T) {
	rt := &recordingTransport{handler: func(r *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{}`), nil
	}}
	uc := newAggregation(rt)

	_, err := uc.Proxy(context.Background(), "https://evil.example.com/x")
	var forbidden *entity.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
	assert.Equal(t, "evil.example.com", forbidden.Host)

	_, err = uc.Proxy(context.Background(), "https://notgithub.com/x")
	require.ErrorAs(t, err, &forbidden)

	assert.Empty(t, rt.calls())
}

func TestProxyAllowsListedHost(t *testing.T) {
	rt := &recordingTransport{handler: func(r *http.Request) (*http.Response, error) {
		return jsonResponse(200, `[{"name":"dc-1"}]`), nil
	}}

	res, err := newAggregation(rt).Proxy(context.Background(), "https://raw.githubusercontent.com/x")
	require.NoError(t, err)
	assert.True(t, res.JSON)
	assert.JSONEq(t, `[{"name":"dc-1"}]`, string(res.Body))
	require.Len(t, rt.calls(), 1)
	assert.Equal(t, "raw.githubusercontent.com", rt.calls()[0].Host)
}

func redirectResponse(location string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusFound,
		Header:     http.Header{"Location": []string{location}},
		Body:       io.NopCloser(strings.NewReader("")),
	}
}

func TestProxyRejectsRedirectToDisallowedHost(t *testing.T) {
	rt := &recordingTransport{handler: func(r *http.Request) (*http.Response, error) {
		if r.URL.Host == "github.com" {
			return redirectResponse("https://evil.example.com/internal"), nil
		}
		return jsonResponse(200, `{"secret":true}`), nil
	}}

	_, err := newAggregation(rt).Proxy(context.Background(), "https://github.com/redirect")

	var forbidden *entity.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
	assert.Equal(t, "evil.example.com", forbidden.Host)
	require.Len(t, rt.calls(), 1)
	assert.Equal(t, "github.com", rt.calls()[0].Host)
}

func TestProxyFollowsRedirectToAllowedHost(t *testing.T) {
	rt := &recordingTransport{handler: func(r *http.Request) (*http.Response, error) {
		if r.URL.Host == "github.com" {
			return redirectResponse("https://raw.githubusercontent.com/a/b.json"), nil
		}
		return jsonResponse(200, `{"ok":true}`), nil
	}}

	res, err := newAggregation(rt).Proxy(context.Background(), "https://github.com/a/b.json")
	require.NoError(t, err)
	assert.True(t, res.JSON)
	assert.JSONEq(t, `{"ok":true}`, string(res.Body))
	require.Len(t, rt.calls(), 2)
	assert.Equal(t, "raw.githubusercontent.com", rt.calls()[1].Host)
}

func TestProxyMalformedJSONFallsBackToRaw(t *testing.T) {
	uc := newAggregation(roundTripFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: 200,
			Header:     http.Header{"Content-Type": []string{"text/plain"}},
			Body:       io.NopCloser(strings.NewReader(`{not json`)),
		}, nil
	}))

	res, err := uc.Proxy(context.Background(), "https://github.com/a/b.csv")
	require.NoError(t, err)
	assert.False(t, res.JSON)
	assert.Equal(t, "text/plain", res.ContentType)
	assert.Equal(t, `{not json`, string(res.Body))
}

func TestProxyValidation(t *testing.T) {
	uc := newAggregation(roundTripFunc(func(*http.Request) (*http.Response, error) {
		t.Fatal("no outbound call expected")
		return nil, nil
	}))

	for _, raw := range []string{"", "ftp://github.com/x", "://bad", "https:///path"} {
		_, err := uc.Proxy(context.Background(), raw)
		assert.True(t, entity.IsValidation(err), "url %q: %v", raw, err)
	}
}

func TestHostAllowed(t *testing.T) {
	allowed := []string{"raw.githubusercontent.com", "github.com", "data.pnnl.gov"}

	cases := map[string]bool{
		"github.com":                true,
		"GitHub.com":                true,
		"api.github.com":            true,
		"raw.githubusercontent.com": true,
		"data.pnnl.gov":             true,
		"evil.example.com":          false,
		"notgithub.com":             false,
		"github.com.evil.io":        false,
		"pnnl.gov":                  false,
	}

	for host, want := range cases {
		assert.Equal(t, want, HostAllowed(host, allowed), host)
	}
}
