package createfilter

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-list-filter/internal/bundles"
	"ai-list-filter/internal/common/aws"
	"ai-list-filter/internal/common/config"
	commonerrors "ai-list-filter/internal/common/errors"
	"ai-list-filter/internal/common/llm"
	"ai-list-filter/internal/common/logger"
	"ai-list-filter/internal/common/metrics"
	"ai-list-filter/internal/common/observability"
	"ai-list-filter/internal/models"
	"ai-list-filter/internal/workers/ai-filter/disambiguate"
	extractconnections "ai-list-filter/internal/workers/ai-filter/extract-connections"
	parsepromptfields "ai-list-filter/internal/workers/ai-filter/parse-prompt-fields"
	reshapefields "ai-list-filter/internal/workers/ai-filter/reshape-fields"
	resolvereferences "ai-list-filter/internal/workers/ai-filter/resolve-references"
	rewriteprompt "ai-list-filter/internal/workers/ai-filter/rewrite-prompt"
	synthesizefilter "ai-list-filter/internal/workers/ai-filter/synthesize-filter"
)

// ==========================
// Test Helper Functions
// ==========================

const (
	springfieldPrompt = "Show contacts in Springfield assigned to Mary"
	springfieldID     = "100364199"
)

type call struct {
	site string
	req  llm.Request
}

// fakeModel answers each call site with a canned JSON body.
type fakeModel struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     []call
}

func (f *fakeModel) CompleteJSON(ctx context.Context, callSite string, req llm.Request, out interface{}) error {
	f.mu.Lock()
	f.calls = append(f.calls, call{site: callSite, req: req})
	f.mu.Unlock()

	if err := f.errs[callSite]; err != nil {
		return err
	}
	body, ok := f.responses[callSite]
	if !ok {
		return commonerrors.NewMalformedModelOutputError("no canned response")
	}
	return json.Unmarshal([]byte(body), out)
}

func (f *fakeModel) sites() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	sites := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		sites = append(sites, c.site)
	}
	return sites
}

func (f *fakeModel) userPrompt(site string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c.site == site {
			return c.req.User
		}
	}
	return ""
}

type fakeSearcher struct {
	locations map[string][]models.Option
	users     map[string][]models.Option
}

func (f *fakeSearcher) SearchLocations(ctx context.Context, query string) ([]models.Option, error) {
	return f.locations[query], nil
}

func (f *fakeSearcher) SearchUsers(ctx context.Context, query, postType string) ([]models.Option, error) {
	return f.users[query], nil
}

func (f *fakeSearcher) SearchPosts(ctx context.Context, query, postType string) ([]models.Option, error) {
	return nil, nil
}

type fakeLister struct {
	posts   []models.Post
	err     error
	queries []models.QueryFields
}

func (f *fakeLister) ListPosts(ctx context.Context, postType string, fields models.QueryFields) ([]models.Post, error) {
	f.queries = append(f.queries, fields)
	return f.posts, f.err
}

// fakeDetector swaps known originals for fixed tokens.
type fakeDetector struct {
	tokens map[string]string
	calls  int
}

func (f *fakeDetector) Obfuscate(ctx context.Context, prompt, postType string) (models.PiiResult, error) {
	f.calls++
	result := models.NoPii(prompt)
	obfuscated := prompt
	for original, token := range f.tokens {
		if strings.Contains(prompt, original) {
			obfuscated = strings.ReplaceAll(obfuscated, original, token)
			result.Pii = append(result.Pii, original)
			result.Mappings[token] = original
		}
	}
	result.Prompt.Obfuscated = obfuscated
	return result, nil
}

type fakeEvents struct {
	events []aws.RunEvent
	err    error
}

func (f *fakeEvents) Publish(ctx context.Context, event aws.RunEvent) error {
	f.events = append(f.events, event)
	return f.err
}

type testEnv struct {
	model    *fakeModel
	detector *fakeDetector
	lister   *fakeLister
	events   *fakeEvents
	handler  *Handler
}

type envOptions struct {
	mode        string
	autoResolve bool
	noSecret    bool
	searcher    *fakeSearcher
}

func testPostTypes() map[string]config.PostTypeConfig {
	return map[string]config.PostTypeConfig{
		"contacts": {
			Label:     "Contacts",
			StatusKey: "overall_status",
			Fields: map[string]config.FieldSpec{
				"assigned_to":    {Name: "Assigned To", Type: "user_select"},
				"location_grid":  {Name: "Locations", Type: "location"},
				"contact_email":  {Name: "Email", Type: "communication_channel"},
				"overall_status": {Name: "Status", Type: "key_select"},
			},
		},
	}
}

func springfieldSearcher() *fakeSearcher {
	return &fakeSearcher{
		locations: map[string][]models.Option{
			"Springfield": {{ID: springfieldID, Label: "Springfield, Illinois"}},
		},
		users: map[string][]models.Option{
			"Mary": {{ID: "12", Label: "Mary Smith"}, {ID: "15", Label: "Mary Jones"}},
		},
	}
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	if opts.mode == "" {
		opts.mode = config.ModeConnections
	}
	if opts.searcher == nil {
		opts.searcher = springfieldSearcher()
	}

	log := logger.NewTestLogger(t)
	postTypes := testPostTypes()
	bundle := bundles.Bundle{Brief: []string{"Test bundle."}}
	env := &testEnv{
		model:    &fakeModel{responses: map[string]string{}, errs: map[string]error{}},
		detector: &fakeDetector{},
		lister:   &fakeLister{},
		events:   &fakeEvents{},
	}

	secret := []byte("test-secret")
	if opts.noSecret {
		secret = nil
	}

	s := opts.searcher
	resolver := resolvereferences.NewHandler(
		&resolvereferences.Config{AutoResolveSingleCandidate: opts.autoResolve, Concurrent: true, Timeout: 5 * time.Second},
		resolvereferences.Searchers{Locations: s, Users: s, Posts: s},
		log,
	)
	stages := Stages{
		Detector:      env.detector,
		Extractor:     extractconnections.NewHandler(&extractconnections.Config{Timeout: 5 * time.Second}, env.model, bundle, log),
		FieldParser:   parsepromptfields.NewHandler(&parsepromptfields.Config{PostTypes: postTypes, Timeout: 5 * time.Second}, env.model, bundle, log),
		Resolver:      resolver,
		Disambiguator: disambiguate.NewHandler(&disambiguate.Config{Secret: secret, TTL: time.Hour}, log),
		Rewriter:      rewriteprompt.NewHandler(rewriteprompt.LoadConfig(), log),
		Synthesizer:   synthesizefilter.NewHandler(&synthesizefilter.Config{PostTypes: postTypes, Timeout: 5 * time.Second}, env.model, bundle, log),
		Reshaper:      reshapefields.NewHandler(&reshapefields.Config{PostTypes: postTypes}, log),
	}

	cfg := LoadConfig()
	cfg.Mode = opts.mode
	cfg.PostTypes = postTypes
	env.handler = NewHandler(cfg, stages, env.lister, env.events, observability.NewNoop(), log)
	return env
}

func values(t *testing.T, fields models.QueryFields, key string) []string {
	t.Helper()
	v, ok := fields.Get(key)
	require.True(t, ok, "missing filter key %s", key)
	return v
}

// ==========================
// Ambiguity Tests
// ==========================

func TestExecute_AmbiguousReference(t *testing.T) {
	tests := []struct {
		name          string
		autoResolve   bool
		wantLocations int
	}{
		{name: "single candidate auto-resolved", autoResolve: true, wantLocations: 0},
		{name: "every candidate confirmed", autoResolve: false, wantLocations: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, envOptions{autoResolve: tt.autoResolve})
			env.model.responses["extract_connections"] = `{"locations":["Springfield"],"connections":["Mary"]}`

			result, err := env.handler.Execute(context.Background(), &Input{Prompt: springfieldPrompt, PostType: "contacts"})
			require.NoError(t, err)

			assert.Equal(t, models.StatusMultipleOptions, result.Status)
			require.NotNil(t, result.MultipleOptions)
			assert.Len(t, result.MultipleOptions.Locations, tt.wantLocations)
			require.Len(t, result.MultipleOptions.Users, 1)
			assert.Equal(t, "Mary", result.MultipleOptions.Users[0].Prompt)
			assert.Len(t, result.MultipleOptions.Users[0].Options, 2)
			assert.Equal(t, []string{"Springfield"}, result.Connections.Extracted.Locations)
			assert.NotEmpty(t, result.Resume)
			assert.Nil(t, result.Filter)

			assert.Empty(t, env.lister.queries)
			assert.Equal(t, []string{"extract_connections"}, env.model.sites())
		})
	}
}

func TestExecuteWithSelections_ResumeToken(t *testing.T) {
	env := newTestEnv(t, envOptions{autoResolve: true})
	env.model.responses["extract_connections"] = `{"locations":["Springfield"],"connections":["Mary"]}`

	first, err := env.handler.Execute(context.Background(), &Input{Prompt: springfieldPrompt, PostType: "contacts"})
	require.NoError(t, err)
	require.Equal(t, models.StatusMultipleOptions, first.Status)

	env.model.responses["synthesize_filter"] = `[
		{"field_key": "location_grid", "field_value": ["@[####](100364199)"], "intent": "EQUALS"},
		{"field_key": "assigned_to", "field_value": ["@[####](12)"], "intent": "EQUALS"}
	]`
	env.lister.posts = []models.Post{{ID: "7", Name: "Alice", PostType: "contacts"}}

	result, err := env.handler.ExecuteWithSelections(context.Background(), &SelectionsInput{
		Prompt:   springfieldPrompt,
		PostType: "contacts",
		Selections: models.SelectionSet{
			Users: []models.Selection{{Prompt: "Mary", ID: "12", Label: "Mary Smith"}},
		},
		Resume: first.Resume,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, "Show contacts in @[####](100364199) assigned to @[####](12)", env.model.userPrompt("synthesize_filter"))
	assert.Equal(t, "Show contacts in @[####](100364199) assigned to @[####](12)", result.Prompt.Parsed)

	require.NotNil(t, result.Filter)
	assert.Equal(t, []string{springfieldID}, values(t, result.Filter.Fields, "location_grid"))
	assert.Equal(t, []string{"12"}, values(t, result.Filter.Fields, "assigned_to"))
	assert.Len(t, result.Posts, 1)
	require.Len(t, env.lister.queries, 1)
	assert.Equal(t, result.Filter.Fields, env.lister.queries[0])
}

func TestExecuteWithSelections_IgnoredReference(t *testing.T) {
	env := newTestEnv(t, envOptions{autoResolve: true})
	env.model.responses["extract_connections"] = `{"locations":["Springfield"],"connections":["Mary"]}`

	first, err := env.handler.Execute(context.Background(), &Input{Prompt: springfieldPrompt, PostType: "contacts"})
	require.NoError(t, err)

	env.model.responses["synthesize_filter"] = `[
		{"field_key": "location_grid", "field_value": ["@[####](100364199)"], "intent": "EQUALS"},
		{"field_key": "assigned_to", "field_value": ["Mary"], "intent": "EQUALS"}
	]`

	result, err := env.handler.ExecuteWithSelections(context.Background(), &SelectionsInput{
		Prompt:   springfieldPrompt,
		PostType: "contacts",
		Selections: models.SelectionSet{
			Users: []models.Selection{{Prompt: "Mary", ID: models.IgnoreSelectionID}},
		},
		Resume: first.Resume,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, result.Status)
	rewritten := env.model.userPrompt("synthesize_filter")
	assert.Equal(t, "Show contacts in @[####](100364199) assigned to Mary", rewritten)

	assert.Equal(t, []string{springfieldID}, values(t, result.Filter.Fields, "location_grid"))
	_, ok := result.Filter.Fields.Get("assigned_to")
	assert.False(t, ok)
}

func TestExecuteWithSelections_WithoutToken(t *testing.T) {
	env := newTestEnv(t, envOptions{autoResolve: true, noSecret: true})
	env.model.responses["extract_connections"] = `{"locations":["Springfield"],"connections":["Mary"]}`

	first, err := env.handler.Execute(context.Background(), &Input{Prompt: springfieldPrompt, PostType: "contacts"})
	require.NoError(t, err)
	require.Equal(t, models.StatusMultipleOptions, first.Status)
	assert.Empty(t, first.Resume)
	require.NotNil(t, first.AutoResolved)
	require.Len(t, first.AutoResolved.Locations, 1)
	assert.Equal(t, "Springfield", first.AutoResolved.Locations[0].Prompt)

	// Round-trip the ambiguous response the way a client would.
	body, err := json.Marshal(first)
	require.NoError(t, err)
	var echoed models.Result
	require.NoError(t, json.Unmarshal(body, &echoed))

	env.model.responses["synthesize_filter"] = `[
		{"field_key": "location_grid", "field_value": ["@[####](100364199)"], "intent": "EQUALS"},
		{"field_key": "assigned_to", "field_value": ["@[####](15)"], "intent": "EQUALS"}
	]`

	result, err := env.handler.ExecuteWithSelections(context.Background(), &SelectionsInput{
		Prompt:   springfieldPrompt,
		PostType: "contacts",
		Selections: models.SelectionSet{
			Users: []models.Selection{{Prompt: "Mary", ID: "15", Label: "Mary Jones"}},
		},
		Pii:            echoed.Pii,
		FilteredFields: echoed.Fields,
		AutoResolved:   echoed.AutoResolved,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, 1, env.detector.calls)
	assert.Equal(t, "Show contacts in @[####](100364199) assigned to @[####](15)", env.model.userPrompt("synthesize_filter"))
	assert.Equal(t, []string{springfieldID}, values(t, result.Filter.Fields, "location_grid"))
	assert.Equal(t, []string{"15"}, values(t, result.Filter.Fields, "assigned_to"))
}

func TestExecuteWithSelections_BareFollowUp(t *testing.T) {
	env := newTestEnv(t, envOptions{autoResolve: true})
	env.model.responses["synthesize_filter"] = `[{"field_key": "assigned_to", "field_value": ["@[####](15)"]}]`

	result, err := env.handler.ExecuteWithSelections(context.Background(), &SelectionsInput{
		Prompt:   springfieldPrompt,
		PostType: "contacts",
		Selections: models.SelectionSet{
			Users: []models.Selection{{Prompt: "Mary", ID: "15", Label: "Mary Jones"}},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, 1, env.detector.calls)
	assert.Contains(t, env.model.userPrompt("synthesize_filter"), "assigned to @[####](15)")
	assert.Equal(t, []string{"15"}, values(t, result.Filter.Fields, "assigned_to"))
	assert.Nil(t, result.Connections)
}

func TestExecuteWithSelections_TokenWinsOverEchoedState(t *testing.T) {
	env := newTestEnv(t, envOptions{autoResolve: true})
	env.model.responses["extract_connections"] = `{"locations":["Springfield"],"connections":["Mary"]}`

	first, err := env.handler.Execute(context.Background(), &Input{Prompt: springfieldPrompt, PostType: "contacts"})
	require.NoError(t, err)
	require.NotEmpty(t, first.Resume)

	env.model.responses["synthesize_filter"] = `[{"field_key": "location_grid", "field_value": ["@[####](100364199)"]}]`

	tampered := models.NewReferenceSet()
	tampered.Add(models.CategoryLocations, models.Reference{
		Prompt:    "Springfield",
		PiiPrompt: "Springfield",
		Options:   []models.Option{{ID: "999", Label: "Springfield, Oregon"}},
	})
	_, err = env.handler.ExecuteWithSelections(context.Background(), &SelectionsInput{
		Prompt:   springfieldPrompt,
		PostType: "contacts",
		Selections: models.SelectionSet{
			Users: []models.Selection{{Prompt: "Mary", ID: "12", Label: "Mary Smith"}},
		},
		AutoResolved: &tampered,
		Resume:       first.Resume,
	})
	require.NoError(t, err)

	assert.Equal(t, "Show contacts in @[####](100364199) assigned to @[####](12)", env.model.userPrompt("synthesize_filter"))
}

func TestExecuteWithSelections_TokenRejected(t *testing.T) {
	env := newTestEnv(t, envOptions{autoResolve: true})
	env.model.responses["extract_connections"] = `{"locations":["Springfield"],"connections":["Mary"]}`

	first, err := env.handler.Execute(context.Background(), &Input{Prompt: springfieldPrompt, PostType: "contacts"})
	require.NoError(t, err)

	result, err := env.handler.ExecuteWithSelections(context.Background(), &SelectionsInput{
		Prompt:   "Show contacts in Shelbyville assigned to Mary",
		PostType: "contacts",
		Resume:   first.Resume,
	})
	require.Error(t, err)

	stdErr, ok := commonerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, commonerrors.ErrCodeResumeTokenInvalid, stdErr.Code)
	assert.Equal(t, models.StatusError, result.Status)
	assert.NotContains(t, result.Message, "Shelbyville")
	assert.Empty(t, env.lister.queries)
}

// ==========================
// Success Path Tests
// ==========================

func TestExecute_ResolvedWithoutQuestions(t *testing.T) {
	searcher := springfieldSearcher()
	searcher.users["Mary"] = searcher.users["Mary"][:1]

	env := newTestEnv(t, envOptions{autoResolve: true, searcher: searcher})
	env.model.responses["extract_connections"] = `{"locations":["Springfield"],"connections":["Mary"]}`
	env.model.responses["synthesize_filter"] = `[
		{"field_key": "location_grid", "field_value": ["@[####](100364199)"]},
		{"field_key": "assigned_to", "field_value": ["@[####](12)"]},
		{"field_key": "overall_status", "field_value": [], "intent": "STATUS_ACTIVE"}
	]`
	env.lister.posts = []models.Post{{ID: "7", Name: "Alice"}, {ID: "9", Name: "Bob"}}

	result, err := env.handler.Execute(context.Background(), &Input{Prompt: springfieldPrompt, PostType: "contacts"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, []string{"extract_connections", "synthesize_filter"}, env.model.sites())
	assert.Equal(t, []string{"12"}, values(t, result.Filter.Fields, "assigned_to"))
	assert.Equal(t, []string{"active"}, values(t, result.Filter.Fields, "overall_status"))
	assert.Len(t, result.Posts, 2)
	assert.Nil(t, result.Points)
	assert.Empty(t, result.Resume)

	require.Len(t, env.events.events, 1)
	event := env.events.events[0]
	assert.Equal(t, "success", event.Status)
	assert.Equal(t, config.ModeConnections, event.Mode)
	assert.Equal(t, 2, event.References)
	assert.Equal(t, 2, event.Results)
	assert.NotEmpty(t, event.RunID)
}

func TestExecute_CountsStageTransitions(t *testing.T) {
	env := newTestEnv(t, envOptions{autoResolve: true, searcher: &fakeSearcher{
		locations: map[string][]models.Option{"Springfield": {{ID: springfieldID, Label: "Springfield, Illinois"}}},
	}})
	env.model.responses["extract_connections"] = `{"locations":["Springfield"],"connections":[]}`
	env.model.responses["synthesize_filter"] = `[{"field_key": "location_grid", "field_value": ["@[####](100364199)"]}]`

	stages := []string{StagePromptRewritten, StageFilterSynthesized, StageFieldsReshaped, StagePostsListed, StageDone}
	before := make(map[string]float64, len(stages))
	for _, stage := range stages {
		before[stage] = testutil.ToFloat64(metrics.PipelineStages.WithLabelValues(stage))
	}

	result, err := env.handler.Execute(context.Background(), &Input{Prompt: "Show contacts in Springfield", PostType: "contacts"})
	require.NoError(t, err)
	require.Equal(t, models.StatusSuccess, result.Status)

	for _, stage := range stages {
		assert.Equal(t, before[stage]+1, testutil.ToFloat64(metrics.PipelineStages.WithLabelValues(stage)), stage)
	}
}

func TestExecute_EmailNeverSentToModel(t *testing.T) {
	const prompt = "Show contacts with email john@example.com"

	env := newTestEnv(t, envOptions{autoResolve: true})
	env.detector.tokens = map[string]string{"john@example.com": "xTOKENjohn"}
	env.model.responses["extract_connections"] = `{"locations":[],"connections":[]}`
	env.model.responses["synthesize_filter"] = `[{"field_key": "contact_email", "field_value": "xTOKENjohn"}]`

	result, err := env.handler.Execute(context.Background(), &Input{Prompt: prompt, PostType: "contacts"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, result.Status)
	require.NotNil(t, result.Pii)
	assert.Equal(t, []string{"john@example.com"}, result.Pii.Pii)
	assert.NotContains(t, result.Pii.Prompt.Obfuscated, "john@example.com")

	for _, c := range env.model.calls {
		assert.NotContains(t, c.req.User, "john@example.com", c.site)
		assert.NotContains(t, c.req.System, "john@example.com", c.site)
	}
	assert.Equal(t, prompt, result.Prompt.Parsed)
	assert.Equal(t, []string{"john@example.com"}, values(t, result.Filter.Fields, "contact_email"))
}

func TestExecute_MapsReturnsPoints(t *testing.T) {
	env := newTestEnv(t, envOptions{autoResolve: true})
	env.model.responses["extract_connections"] = `{"locations":[],"connections":[]}`
	env.model.responses["synthesize_filter"] = `[{"field_key": "overall_status", "field_value": [], "intent": "STATUS_ACTIVE"}]`
	env.lister.posts = []models.Post{
		{ID: "7", Name: "Alice", LocationGridMeta: []models.LocationMeta{
			{GridID: springfieldID, Label: "Springfield", Lat: 39.8, Lng: -89.6},
			{GridID: "1", Label: "Nowhere"},
		}},
	}

	result, err := env.handler.Execute(context.Background(), &Input{Prompt: "Show active contacts", PostType: "contacts", Maps: true})
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Nil(t, result.Posts)
	require.NotNil(t, result.Points)
	require.Len(t, result.Points.Features, 1)
	feature := result.Points.Features[0]
	assert.Equal(t, []float64{-89.6, 39.8, 1}, feature.Geometry.Coordinates)
	assert.Equal(t, models.ID("7"), feature.Properties.PostID)
	assert.Equal(t, "contacts", feature.Properties.PostType)
}

func TestExecute_FieldsMode(t *testing.T) {
	searcher := springfieldSearcher()
	searcher.users["Mary"] = searcher.users["Mary"][:1]

	env := newTestEnv(t, envOptions{mode: config.ModeFields, autoResolve: true, searcher: searcher})
	env.model.responses["parse_prompt_fields"] = `[
		{"field_key": "location_grid", "field_value": ["Springfield"]},
		{"field_key": "assigned_to", "field_value": ["Mary"]}
	]`

	result, err := env.handler.Execute(context.Background(), &Input{Prompt: springfieldPrompt, PostType: "contacts"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, []string{"parse_prompt_fields"}, env.model.sites())
	assert.Equal(t, []string{springfieldID}, values(t, result.Filter.Fields, "location_grid"))
	assert.Equal(t, []string{"12"}, values(t, result.Filter.Fields, "assigned_to"))
	assert.Empty(t, result.Prompt.Parsed)
	assert.Equal(t, config.ModeFields, env.events.events[0].Mode)
}

// ==========================
// Failure Tests
// ==========================

func TestExecute_MalformedModelOutput(t *testing.T) {
	env := newTestEnv(t, envOptions{autoResolve: true})
	env.model.responses["extract_connections"] = `{"locations":[],"connections":[]}`
	env.model.errs["synthesize_filter"] = commonerrors.NewMalformedModelOutputError("unexpected end of JSON input")

	result, err := env.handler.Execute(context.Background(), &Input{Prompt: "Show active contacts", PostType: "contacts"})
	require.Error(t, err)

	stdErr, ok := commonerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, commonerrors.ErrCodeMalformedModelOutput, stdErr.Code)

	require.NotNil(t, result)
	assert.Equal(t, models.StatusError, result.Status)
	assert.Equal(t, "Unable to process prompt: the language model did not return a usable response", result.Message)
	assert.Nil(t, result.Filter)
	assert.Empty(t, env.lister.queries)

	require.Len(t, env.events.events, 1)
	assert.Equal(t, "error", env.events.events[0].Status)
}

func TestExecute_ListFailure(t *testing.T) {
	env := newTestEnv(t, envOptions{autoResolve: true})
	env.model.responses["extract_connections"] = `{"locations":[],"connections":[]}`
	env.model.responses["synthesize_filter"] = `[{"field_key": "overall_status", "field_value": [], "intent": "STATUS_ACTIVE"}]`
	env.lister.err = commonerrors.NewQueryExecutionFailedError("list_posts", errors.New("connection reset"))

	result, err := env.handler.Execute(context.Background(), &Input{Prompt: "Show active contacts", PostType: "contacts"})
	require.Error(t, err)
	assert.Equal(t, "Unable to process prompt: records could not be searched", result.Message)
}

func TestExecute_PublishFailureDoesNotFailRun(t *testing.T) {
	env := newTestEnv(t, envOptions{autoResolve: true})
	env.events.err = errors.New("topic not found")
	env.model.responses["extract_connections"] = `{"locations":[],"connections":[]}`
	env.model.responses["synthesize_filter"] = `[{"field_key": "overall_status", "field_value": [], "intent": "STATUS_ACTIVE"}]`

	result, err := env.handler.Execute(context.Background(), &Input{Prompt: "Show active contacts", PostType: "contacts"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Len(t, env.events.events, 1)
}

func TestExecute_InvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		input    *Input
		wantCode commonerrors.ErrorCode
	}{
		{
			name:     "empty prompt",
			input:    &Input{Prompt: "  ", PostType: "contacts"},
			wantCode: commonerrors.ErrCodeRequestValidationFailed,
		},
		{
			name:     "missing post type",
			input:    &Input{Prompt: "Show contacts"},
			wantCode: commonerrors.ErrCodeRequestValidationFailed,
		},
		{
			name:     "unknown post type",
			input:    &Input{Prompt: "Show contacts", PostType: "trainings"},
			wantCode: commonerrors.ErrCodeUnknownPostType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, envOptions{autoResolve: true})

			result, err := env.handler.Execute(context.Background(), tt.input)
			require.Error(t, err)
			assert.Nil(t, result)

			stdErr, ok := commonerrors.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, stdErr.Code)
			assert.Zero(t, env.detector.calls)
			assert.Empty(t, env.events.events)
		})
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name    string
		message string
		err     error
		want    string
	}{
		{
			name:    "model failure",
			message: defaultErrorMessage,
			err:     commonerrors.NewLLMTimeoutError(time.Second),
			want:    "Unable to process prompt: the language model did not return a usable response",
		},
		{
			name:    "unclassified",
			message: defaultErrorMessage,
			err:     errors.New("boom"),
			want:    "Unable to process prompt: internal error",
		},
		{
			name:    "message without placeholder",
			message: "Something went wrong",
			err:     errors.New("boom"),
			want:    "Something went wrong",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &Handler{config: &Config{ErrorMessage: tt.message}}
			assert.Equal(t, tt.want, h.errorMessage(tt.err))
		})
	}
}
