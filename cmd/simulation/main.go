package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	minNegotiations = 10
	maxNegotiations = 60
	numWorkers      = 5
	serverAddress   = "http://localhost:8080"
	gatewaySecret   = "marketplace-gateway-secret"
)

// catalogItem is a template the simulation instantiates with random asset ids
type catalogItem struct {
	name     string
	minPrice float64
	maxPrice float64
}

var catalog = []catalogItem{
	{"AK-47 | Redline (Field-Tested)", 15, 40},
	{"AWP | Asiimov (Battle-Scarred)", 50, 120},
	{"M4A4 | Howl (Minimal Wear)", 1500, 4000},
	{"Glock-18 | Fade (Factory New)", 200, 450},
	{"Butterfly Knife | Doppler", 800, 2000},
	{"USP-S | Kill Confirmed", 30, 90},
	{"Desert Eagle | Blaze", 400, 700},
	{"Sticker | Titan (Holo)", 40000, 60000},
}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes min, max, mean, median, 95th and 99th percentile
// durations from the recorded measurements
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))
	median = rs.durations[len(rs.durations)/2]

	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient drives the marketplace API as one authenticated user
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
	statsMu   sync.Mutex
}

// newSimulationClient authenticates against the API and prepares
// performance tracking for every route the simulation exercises
func newSimulationClient() (*simulationClient, error) {
	sc := &simulationClient{
		baseURL: serverAddress,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		stats: map[string]*routeStats{
			"auth":      {name: "Authentication"},
			"trade_url": {name: "Set Trade URL"},
			"make":      {name: "Make Offer"},
			"round":     {name: "Append Round"},
			"status":    {name: "Update Status"},
			"check":     {name: "Check To Pay"},
			"draft":     {name: "Fetch Draft"},
		},
	}

	if err := sc.authenticate(); err != nil {
		return nil, err
	}

	return sc, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// post sends an authenticated JSON request and decodes the envelope data.
// Expected non-2xx statuses (a check-to-pay mismatch) surface as errors the
// caller can inspect.
func (sc *simulationClient) post(route, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	start := time.Now()
	req, err := http.NewRequest(http.MethodPost, sc.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if sc.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+sc.authToken)
	}

	resp, err := sc.client.Do(req)
	sc.record(route, time.Since(start), err == nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		sc.fail(route)
		return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}
	return json.Unmarshal(env.Data, out)
}

func (sc *simulationClient) get(route, path string, out interface{}) error {
	start := time.Now()
	req, err := http.NewRequest(http.MethodGet, sc.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := sc.client.Do(req)
	sc.record(route, time.Since(start), err == nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		sc.fail(route)
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}
	return json.Unmarshal(env.Data, out)
}

func (sc *simulationClient) record(route string, d time.Duration, ok bool) {
	sc.statsMu.Lock()
	defer sc.statsMu.Unlock()
	if rs, found := sc.stats[route]; found {
		rs.addDuration(d)
		if !ok {
			rs.failures++
		}
	}
}

func (sc *simulationClient) fail(route string) {
	sc.statsMu.Lock()
	defer sc.statsMu.Unlock()
	if rs, found := sc.stats[route]; found {
		rs.failures++
	}
}

func (sc *simulationClient) authenticate() error {
	var token struct {
		JWTToken string `json:"jwt_token"`
	}
	err := sc.post("auth", "/api/v1/auth/token", map[string]string{
		"steam_id":       randomSteamID(),
		"gateway_secret": gatewaySecret,
	}, &token)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	sc.authToken = token.JWTToken
	return nil
}

// wireItem mirrors the item shape the negotiation frontend submits
type wireItem struct {
	AssetID   string `json:"item_asset_id"`
	ContextID string `json:"item_contextid"`
	AppID     string `json:"item_appid"`
	Name      string `json:"item_name"`
	Price     string `json:"item_price"`
	Link      string `json:"item_link"`
	Image     string `json:"item_image"`
}

func randomSteamID() string {
	return fmt.Sprintf("7656119%09d", rand.Intn(1_000_000_000))
}

func randomItem() wireItem {
	tpl := catalog[rand.Intn(len(catalog))]
	price := tpl.minPrice + rand.Float64()*(tpl.maxPrice-tpl.minPrice)
	assetID := fmt.Sprintf("%d", rand.Int63n(10_000_000_000))
	return wireItem{
		AssetID:   assetID,
		ContextID: "2",
		AppID:     "730",
		Name:      tpl.name,
		Price:     fmt.Sprintf("%.2f", price),
		Link:      "https://steamcommunity.com/market/listings/730/" + tpl.name,
		Image:     "https://community.cloudflare.steamstatic.com/economy/image/" + assetID,
	}
}

// mutateItems simulates one haggling round: occasionally drop an item,
// occasionally reprice one, occasionally add one
func mutateItems(items []wireItem) []wireItem {
	next := append([]wireItem(nil), items...)

	if len(next) > 1 && rand.Float64() < 0.3 {
		i := rand.Intn(len(next))
		next = append(next[:i], next[i+1:]...)
	}
	if len(next) > 0 && rand.Float64() < 0.5 {
		i := rand.Intn(len(next))
		price := 1 + rand.Float64()*100
		next[i].Price = fmt.Sprintf("%.2f", price)
	}
	if rand.Float64() < 0.4 {
		next = append(next, randomItem())
	}
	return next
}

// runNegotiation walks one buyer/trader pair through the whole flow: open
// the offer, haggle a few rounds, accept, verify and fetch the draft
func (sc *simulationClient) runNegotiation() error {
	buyerID := randomSteamID()
	traderID := randomSteamID()

	tradeURL := fmt.Sprintf("https://steamcommunity.com/tradeoffer/new/?partner=%d&token=%s",
		rand.Intn(1_000_000), fmt.Sprintf("tok%05d", rand.Intn(100000)))
	err := sc.post("trade_url", "/api/v1/accounts/trade-url", map[string]string{
		"steam_id":  traderID,
		"trade_url": tradeURL,
	}, nil)
	if err != nil {
		return err
	}

	var made struct {
		OfferID string `json:"offer_id"`
	}
	err = sc.post("make", "/api/v1/offers", map[string]string{
		"buyer_id":  buyerID,
		"trader_id": traderID,
	}, &made)
	if err != nil {
		return err
	}

	items := []wireItem{randomItem()}
	rounds := 1 + rand.Intn(4)
	for i := 0; i < rounds; i++ {
		if i > 0 {
			items = mutateItems(items)
		}
		if len(items) == 0 {
			items = []wireItem{randomItem()}
		}
		err = sc.post("round", "/api/v1/offers/rounds", map[string]interface{}{
			"offer_id":                 made.OfferID,
			"special_for_update_offer": items,
		}, nil)
		if err != nil {
			return err
		}
	}

	err = sc.post("status", "/api/v1/offers/status", map[string]string{
		"offer_id": made.OfferID,
		"status":   "ACCEPTED",
	}, nil)
	if err != nil {
		return err
	}

	var check struct {
		OK       bool   `json:"ok"`
		DraftID  string `json:"draft_id"`
		SteamURL string `json:"steam_url"`
	}
	err = sc.post("check", "/api/v1/offers/check-to-pay", map[string]interface{}{
		"offer_id":               made.OfferID,
		"special_for_save_offer": items,
		"partner_steam_id":       traderID,
	}, &check)
	if err != nil {
		return err
	}
	if !check.OK {
		return fmt.Errorf("check-to-pay rejected a matching item list for offer %s", made.OfferID)
	}

	var draft struct {
		DraftID string `json:"draft_id"`
		OfferID string `json:"offer_id"`
	}
	if err := sc.get("draft", "/api/v1/drafts/"+check.DraftID, &draft); err != nil {
		return err
	}
	if draft.OfferID != made.OfferID {
		return fmt.Errorf("draft %s points at offer %s, expected %s", check.DraftID, draft.OfferID, made.OfferID)
	}

	return nil
}

func main() {
	log.Info().Msg("starting marketplace simulation")

	sc, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create simulation client")
	}

	total := minNegotiations + rand.Intn(maxNegotiations-minNegotiations+1)
	log.Info().Int("negotiations", total).Int("workers", numWorkers).Msg("simulation plan")

	jobs := make(chan int)
	var wg sync.WaitGroup
	var failures int
	var failMu sync.Mutex

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for n := range jobs {
				if err := sc.runNegotiation(); err != nil {
					log.Error().Err(err).Int("worker", worker).Int("negotiation", n).Msg("negotiation failed")
					failMu.Lock()
					failures++
					failMu.Unlock()
				}
			}
		}(w)
	}

	start := time.Now()
	for n := 0; n < total; n++ {
		jobs <- n
	}
	close(jobs)
	wg.Wait()
	elapsed := time.Since(start)

	log.Info().
		Int("total", total).
		Int("failures", failures).
		Dur("elapsed", elapsed).
		Msg("simulation complete")

	printStats(sc)
}

// printStats renders the per-route latency table
func printStats(sc *simulationClient) {
	fmt.Println("\nRoute performance:")
	fmt.Printf("%-18s %8s %8s %10s %10s %10s %10s %10s %10s\n",
		"Route", "Calls", "Fails", "Min", "Max", "Mean", "Median", "P95", "P99")

	keys := make([]string, 0, len(sc.stats))
	for k := range sc.stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		rs := sc.stats[k]
		if rs.totalCalls == 0 {
			continue
		}
		min, max, mean, median, p95, p99 := rs.calculate()
		fmt.Printf("%-18s %8d %8d %10s %10s %10s %10s %10s %10s\n",
			rs.name, rs.totalCalls, rs.failures,
			min.Round(time.Microsecond), max.Round(time.Microsecond),
			mean.Round(time.Microsecond), median.Round(time.Microsecond),
			p95.Round(time.Microsecond), p99.Round(time.Microsecond))
	}
}
