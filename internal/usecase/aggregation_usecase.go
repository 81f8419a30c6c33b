package usecase

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jaennil/guide_helper/backend/geocache/internal/entity"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/config"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/logger"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	ProviderElevation = "elevation"
	ProviderWaterways = "waterways"
	ProviderAirports  = "airports"
	ProviderProxy     = "proxy"

	// MaxElevationLocations is the provider's per-request point limit.
	MaxElevationLocations = 100
)

type waterwayLayer struct {
	ID     int
	Name   string
	Fields string
}

const (
	flowlineFields = "OBJECTID,gnis_name,ftype,fcode,lengthkm,reachcode"
	areaFields     = "OBJECTID,gnis_name,ftype,fcode,areasqkm"
	airportFields  = "IDENT,NAME,LATITUDE,LONGITUDE,ELEVATION,ICAO_ID,TYPE_CODE,SERVCITY,STATE,OPERSTATUS,PRIVATEUSE,MIL_CODE"
)

// WaterwayLayers are the NHD MapServer layers merged by Waterways, in response order.
var WaterwayLayers = []waterwayLayer{
	{ID: 1, Name: "rivers", Fields: flowlineFields},
	{ID: 6, Name: "rivers_detailed", Fields: flowlineFields},
	{ID: 3, Name: "waterbodies", Fields: areaFields},
	{ID: 5, Name: "areas", Fields: areaFields},
}

// Feature is one provider feature with its attributes left undecoded.
type Feature map[string]json.RawMessage

type arcgisResponse struct {
	Features []Feature       `json:"features"`
	Error    json.RawMessage `json:"error"`
}

// ProxyResult is a relayed body. JSON reports whether Body parsed as JSON.
type ProxyResult struct {
	ContentType string
	Body        []byte
	JSON        bool
}

type AggregationUseCase struct {
	fetcher Fetcher
	cfg     config.Upstream
	logger  logger.Logger
}

func NewAggregationUseCase(fetcher Fetcher, cfg config.Upstream, l logger.Logger) *AggregationUseCase {
	return &AggregationUseCase{
		fetcher: fetcher,
		cfg:     cfg,
		logger:  l,
	}
}

// Elevation relays a single elevation query and returns the provider's JSON verbatim.
func (uc *AggregationUseCase) Elevation(ctx context.Context, locations []entity.Location) (json.RawMessage, error) {
	if len(locations) == 0 {
		return nil, entity.NewValidationError("Missing or invalid locations array")
	}
	if len(locations) > MaxElevationLocations {
		return nil, entity.NewValidationError("at most %d locations per request, got %d", MaxElevationLocations, len(locations))
	}

	points := make([]string, len(locations))
	for i, l := range locations {
		points[i] = l.String()
	}

	params := url.Values{}
	params.Set("locations", strings.Join(points, "|"))

	uc.logger.Info("fetching elevation", "points", len(locations))

	resp, err := uc.fetcher.Get(ctx, ProviderElevation, uc.cfg.ElevationURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	if !json.Valid(resp.Body) {
		return nil, &entity.UpstreamError{Provider: ProviderElevation, StatusCode: http.StatusBadGateway, Err: errors.New("provider returned invalid JSON")}
	}

	return resp.Body, nil
}

// Waterways queries every NHD layer concurrently and concatenates their features in
// layer order, each tagged with layerType. A failed layer contributes no features;
// the call itself never fails once the box is valid.
func (uc *AggregationUseCase) Waterways(ctx context.Context, box entity.BBox) []Feature {
	results := make([][]Feature, len(WaterwayLayers))

	var g errgroup.Group
	for i, layer := range WaterwayLayers {
		g.Go(func() error {
			features, err := uc.waterwayLayer(ctx, layer, box)
			if err != nil {
				metrics.WaterwayLayerFailures.WithLabelValues(layer.Name).Inc()
				uc.logger.Warn("waterway layer failed", "layer", layer.Name, "error", err)
				return nil
			}
			results[i] = features
			return nil
		})
	}
	// every task returns nil: this only waits for all layers to settle
	_ = g.Wait()

	all := make([]Feature, 0)
	counts := make([]any, 0, 2*len(WaterwayLayers))
	for i, layer := range WaterwayLayers {
		all = append(all, results[i]...)
		counts = append(counts, layer.Name, len(results[i]))
	}

	uc.logger.Info("waterways received", append([]any{"features", len(all)}, counts...)...)

	return all
}

func (uc *AggregationUseCase) waterwayLayer(ctx context.Context, layer waterwayLayer, box entity.BBox) ([]Feature, error) {
	params := url.Values{}
	params.Set("f", "json")
	params.Set("geometry", box.Envelope())
	params.Set("geometryType", "esriGeometryEnvelope")
	params.Set("inSR", "4326")
	params.Set("outSR", "4326")
	params.Set("spatialRel", "esriSpatialRelIntersects")
	params.Set("outFields", layer.Fields)
	params.Set("returnGeometry", "true")

	rawURL := strings.TrimSuffix(uc.cfg.WaterwaysURL, "/") + "/" + strconv.Itoa(layer.ID) + "/query?" + params.Encode()

	resp, err := uc.fetcher.Get(ctx, ProviderWaterways, rawURL)
	if err != nil {
		return nil, err
	}

	var data arcgisResponse
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return nil, err
	}

	tag, err := json.Marshal(layer.Name)
	if err != nil {
		return nil, err
	}
	for _, f := range data.Features {
		if f != nil {
			f["layerType"] = tag
		}
	}

	return data.Features, nil
}

// Airports relays the FAA airport query. An error object embedded in a 2xx reply
// means no features.
func (uc *AggregationUseCase) Airports(ctx context.Context, box entity.BBox) ([]Feature, error) {
	bound := box.Bound()
	geometry, err := json.Marshal(map[string]any{
		"xmin":             bound.Min.X(),
		"ymin":             bound.Min.Y(),
		"xmax":             bound.Max.X(),
		"ymax":             bound.Max.Y(),
		"spatialReference": map[string]int{"wkid": 4326},
	})
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("where", "1=1")
	params.Set("geometry", string(geometry))
	params.Set("geometryType", "esriGeometryEnvelope")
	params.Set("inSR", "4326")
	params.Set("spatialRel", "esriSpatialRelIntersects")
	params.Set("outFields", airportFields)
	params.Set("returnGeometry", "true")
	params.Set("outSR", "4326")
	params.Set("f", "json")

	uc.logger.Info("fetching airports", "bbox", box.Envelope())

	resp, err := uc.fetcher.Get(ctx, ProviderAirports, uc.cfg.AirportsURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var data arcgisResponse
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return nil, &entity.UpstreamError{Provider: ProviderAirports, StatusCode: http.StatusBadGateway, Err: err}
	}

	if !entity.IsNullBlob(data.Error) {
		uc.logger.Warn("airport provider returned an error object", "error", string(data.Error))
		return []Feature{}, nil
	}
	if data.Features == nil {
		return []Feature{}, nil
	}

	uc.logger.Info("airports received", "features", len(data.Features))

	return data.Features, nil
}

// Proxy relays a GET to an allow-listed host. The host check runs before any
// outbound call.
func (uc *AggregationUseCase) Proxy(ctx context.Context, rawURL string) (ProxyResult, error) {
	if rawURL == "" {
		return ProxyResult{}, entity.NewValidationError("Missing 'url' query parameter")
	}

	target, err := url.Parse(rawURL)
	if err != nil {
		return ProxyResult{}, entity.NewValidationError("invalid url: %v", err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return ProxyResult{}, entity.NewValidationError("unsupported url scheme: %q", target.Scheme)
	}

	host := strings.ToLower(target.Hostname())
	if host == "" {
		return ProxyResult{}, entity.NewValidationError("url has no host")
	}
	if err := uc.checkProxyHost(host); err != nil {
		uc.logger.Warn("proxy host rejected", "host", host)
		return ProxyResult{}, err
	}

	uc.logger.Info("proxying request", "host", host)

	// redirects are held to the same allow-list as the requested host
	resp, err := uc.fetcher.GetChecked(ctx, ProviderProxy+":"+host, target.String(), uc.checkProxyHost)
	if err != nil {
		return ProxyResult{}, err
	}

	result := ProxyResult{ContentType: resp.ContentType, Body: resp.Body}
	if looksLikeJSON(resp.ContentType, resp.Body) && json.Valid(resp.Body) {
		result.JSON = true
	}

	return result, nil
}

func (uc *AggregationUseCase) checkProxyHost(host string) error {
	if !HostAllowed(host, uc.cfg.AllowedDomains) {
		return &entity.ForbiddenError{Host: host, Allowed: uc.cfg.AllowedDomains}
	}
	return nil
}

// HostAllowed reports whether host equals an allowed domain or is a subdomain of one.
func HostAllowed(host string, allowed []string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	for _, domain := range allowed {
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain == "" {
			continue
		}
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

func looksLikeJSON(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "json") {
		return true
	}
	trimmed := bytes.TrimSpace(body)
	return bytes.HasPrefix(trimmed, []byte("[")) || bytes.HasPrefix(trimmed, []byte("{"))
}
