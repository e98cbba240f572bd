package reference

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/antonholmquist/jason"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/challenge-migration/internal/conf"
	"github.com/tphakala/challenge-migration/internal/errors"
	"github.com/tphakala/challenge-migration/internal/httpclient"
	"github.com/tphakala/challenge-migration/internal/logger"
)

const (
	timelineURL = "https://api.test/v5/timeline-templates"
	projectsURL = "https://api.test/v5/projects"
	termsURL    = "https://api.test/v5/terms"
	groupsURL   = "https://api.test/v5/groups"
	typesURL    = "https://api.test/v4/challenge-types"
	tokenURL    = "https://auth.test/oauth/token"
)

type fakeTypes struct {
	calls atomic.Int32
	docs  []map[string]any
	err   error
}

func (f *fakeTypes) ScanAll(_ context.Context, table string) ([]map[string]any, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

type fixture struct {
	mock     *httpmock.MockTransport
	client   *httpclient.Client
	types    *fakeTypes
	resolver *Resolver
}

func newFixture(t *testing.T, withAuth bool) *fixture {
	t.Helper()

	client := httpclient.New(nil)
	mock := httpmock.NewMockTransport()
	client.HTTPClient().Transport = mock
	t.Cleanup(client.Close)

	tokens := NewTokenSource(t.Context(), conf.AuthSettings{}, client)
	if withAuth {
		mock.RegisterResponder(http.MethodPost, tokenURL,
			httpmock.NewStringResponder(http.StatusOK, `{"access_token":"tok-1","token_type":"bearer","expires_in":3600}`).
				HeaderSet(http.Header{"Content-Type": {"application/json"}}))
		tokens = NewTokenSource(t.Context(), conf.AuthSettings{
			TokenURL:     tokenURL,
			ClientID:     "id",
			ClientSecret: "secret",
			Audience:     "https://api.test/",
		}, client)
	}

	types := &fakeTypes{}
	r := NewResolver(Config{
		TimelineURL:        timelineURL,
		ProjectsURL:        projectsURL,
		TermsURL:           termsURL,
		GroupsURL:          groupsURL,
		ChallengeTypesURL:  typesURL,
		TermsPerPage:       2,
		ChallengeTypeTable: "challenge_type",
	}, client, tokens, types, nil, logger.NewNopLogger())

	return &fixture{mock: mock, client: client, types: types, resolver: r}
}

func TestTypeMapping(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	f.types.docs = []map[string]any{
		{"id": "uuid-code", "legacyId": float64(39)},
		{"id": "uuid-f2f", "legacyId": "38"},
		{"id": "uuid-new", "name": "no legacy id"},
	}

	m, err := f.resolver.TypeMapping(t.Context())
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{39: "uuid-code", 38: "uuid-f2f"}, m)

	// second call is served from the cache
	_, err = f.resolver.TypeMapping(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.types.calls.Load())
	assert.Equal(t, 2, f.resolver.Caches().Stats().Types)
}

func TestTypeMapping_ScanError(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	f.types.err = errors.NewStd("connection refused")

	_, err := f.resolver.TypeMapping(t.Context())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryReference))

	// failures are not cached
	f.types.err = nil
	f.types.docs = []map[string]any{{"id": "a", "legacyId": float64(1)}}
	m, err := f.resolver.TypeMapping(t.Context())
	require.NoError(t, err)
	assert.Len(t, m, 1)
}

func TestTimeline(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	f.mock.RegisterResponderWithQuery(http.MethodGet, timelineURL, "typeId=type-a",
		httpmock.NewStringResponder(http.StatusOK, `[{"id":"tl-1","name":"Standard"},{"id":"tl-2"}]`))
	f.mock.RegisterResponderWithQuery(http.MethodGet, timelineURL, "typeId=type-b",
		httpmock.NewStringResponder(http.StatusOK, `[]`))
	f.mock.RegisterResponderWithQuery(http.MethodGet, timelineURL, "typeId=type-c",
		httpmock.NewStringResponder(http.StatusOK, ``))

	got := f.resolver.Timeline(t.Context(), "type-a")
	assert.Equal(t, Timeline{ID: "tl-1", Name: "Standard", Found: true}, got)

	assert.Equal(t, NotAvailable, f.resolver.Timeline(t.Context(), "type-b").ID)
	assert.Equal(t, NotAvailable, f.resolver.Timeline(t.Context(), "type-c").ID)

	f.resolver.Timeline(t.Context(), "type-a")
	assert.Equal(t, 3, f.mock.GetTotalCallCount())
}

func TestTimeline_ErrorFallsBackWithoutCaching(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	f.mock.RegisterResponderWithQuery(http.MethodGet, timelineURL, "typeId=type-a",
		httpmock.NewStringResponder(http.StatusServiceUnavailable, `busy`))

	assert.Equal(t, NotAvailable, f.resolver.Timeline(t.Context(), "type-a").ID)

	f.mock.RegisterResponderWithQuery(http.MethodGet, timelineURL, "typeId=type-a",
		httpmock.NewStringResponder(http.StatusOK, `[{"id":"tl-1"}]`))
	assert.Equal(t, "tl-1", f.resolver.Timeline(t.Context(), "type-a").ID)
}

func TestTimelines(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	f.mock.RegisterResponderWithQuery(http.MethodGet, timelineURL, "typeId=a",
		httpmock.NewStringResponder(http.StatusOK, `[{"id":"tl-a"}]`))
	f.mock.RegisterResponderWithQuery(http.MethodGet, timelineURL, "typeId=b",
		httpmock.NewStringResponder(http.StatusOK, `[]`))

	got := f.resolver.Timelines(t.Context(), []string{"a", "b", "", "a"})
	assert.Equal(t, map[string]string{"a": "tl-a", "b": NotAvailable}, got)
	assert.Equal(t, 2, f.resolver.Caches().Stats().Timelines)
}

func TestProject(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	var hits atomic.Int32
	f.mock.RegisterResponderWithQuery(http.MethodGet, projectsURL, "directProjectId=7001",
		func(req *http.Request) (*http.Response, error) {
			hits.Add(1)
			assert.Equal(t, "Bearer tok-1", req.Header.Get("Authorization"))
			return httpmock.NewStringResponse(http.StatusOK, `[{"id":16543,"name":"p"}]`), nil
		})
	f.mock.RegisterResponderWithQuery(http.MethodGet, projectsURL, "directProjectId=7004",
		httpmock.NewStringResponder(http.StatusOK, `[{"id":"16544"}]`))
	f.mock.RegisterResponderWithQuery(http.MethodGet, projectsURL, "directProjectId=7002",
		httpmock.NewStringResponder(http.StatusOK, `[]`))
	f.mock.RegisterResponderWithQuery(http.MethodGet, projectsURL, "directProjectId=7003",
		httpmock.NewStringResponder(http.StatusInternalServerError, `boom`))

	id, err := f.resolver.Project(t.Context(), 7001)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, int64(16543), *id)

	id, err = f.resolver.Project(t.Context(), 7002)
	require.NoError(t, err)
	assert.Nil(t, id)

	_, err = f.resolver.Project(t.Context(), 7003)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryReference))

	id, err = f.resolver.Project(t.Context(), 7004)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, int64(16544), *id)

	// uncached
	_, _ = f.resolver.Project(t.Context(), 7001)
	assert.Equal(t, int32(2), hits.Load())

	// five lookups plus a single shared token request
	assert.Equal(t, 6, f.mock.GetTotalCallCount())
}

func TestTerms_Pagination(t *testing.T) {
	t.Parallel()

	t.Run("stops past total pages", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, false)
		pages := map[string]string{
			"1": `{"result":[{"id":"t-1","legacyId":20704},{"id":"t-2","legacyId":"21303"}]}`,
			"2": `{"result":[{"id":"t-3","legacyId":30000}]}`,
		}
		for page, body := range pages {
			f.mock.RegisterResponderWithQuery(http.MethodGet, termsURL, "page="+page+"&perPage=2",
				httpmock.NewStringResponder(http.StatusOK, body).
					HeaderSet(http.Header{"X-Total-Pages": {"2"}}))
		}

		terms, err := f.resolver.Terms(t.Context())
		require.NoError(t, err)
		assert.Equal(t, []Term{
			{ID: "t-1", LegacyID: 20704},
			{ID: "t-2", LegacyID: 21303},
			{ID: "t-3", LegacyID: 30000},
		}, terms)
		assert.Equal(t, map[int64]string{20704: "t-1", 21303: "t-2", 30000: "t-3"}, TermIDs(terms))
		assert.Equal(t, 2, f.mock.GetTotalCallCount())

		_, err = f.resolver.Terms(t.Context())
		require.NoError(t, err)
		assert.Equal(t, 2, f.mock.GetTotalCallCount())
	})

	t.Run("stops on empty page", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, false)
		f.mock.RegisterResponderWithQuery(http.MethodGet, termsURL, "page=1&perPage=2",
			httpmock.NewStringResponder(http.StatusOK, `{"result":[{"id":"t-1","legacyId":1}]}`))
		f.mock.RegisterResponderWithQuery(http.MethodGet, termsURL, "page=2&perPage=2",
			httpmock.NewStringResponder(http.StatusOK, `{"result":[]}`))

		terms, err := f.resolver.Terms(t.Context())
		require.NoError(t, err)
		assert.Len(t, terms, 1)
	})

	t.Run("error fails the listing", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, false)
		f.mock.RegisterResponderWithQuery(http.MethodGet, termsURL, "page=1&perPage=2",
			httpmock.NewStringResponder(http.StatusNotFound, `missing`))

		_, err := f.resolver.Terms(t.Context())
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryNotFound))
	})
}

func TestResolveGroups_AtMostOneLookupPerGroup(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	var lookups sync.Map
	f.mock.RegisterResponder(http.MethodGet, groupsURL,
		func(req *http.Request) (*http.Response, error) {
			old := req.URL.Query().Get("oldId")
			n, _ := lookups.LoadOrStore(old, new(atomic.Int32))
			n.(*atomic.Int32).Add(1)
			switch old {
			case "10":
				return httpmock.NewStringResponse(http.StatusOK, `[{"id":"g-10"}]`), nil
			case "20":
				return httpmock.NewStringResponse(http.StatusOK, `[{"id":"g-20"}]`), nil
			case "30":
				return httpmock.NewStringResponse(http.StatusOK, `[]`), nil
			default:
				return httpmock.NewStringResponse(http.StatusBadGateway, `down`), nil
			}
		})

	refs := []GroupRef{
		{ChallengeID: 1, LegacyGroupID: 10},
		{ChallengeID: 2, LegacyGroupID: 10},
		{ChallengeID: 2, LegacyGroupID: 20},
		{ChallengeID: 3, LegacyGroupID: 30},
		{ChallengeID: 3, LegacyGroupID: 40},
		{ChallengeID: 4, LegacyGroupID: 0},
	}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := f.resolver.ResolveGroups(t.Context(), refs)
			assert.ElementsMatch(t, []ResolvedGroup{
				{GroupRef: refs[0], ID: "g-10"},
				{GroupRef: refs[1], ID: "g-10"},
				{GroupRef: refs[2], ID: "g-20"},
			}, got)
		}()
	}
	wg.Wait()

	for _, id := range []string{"10", "20", "30"} {
		n, ok := lookups.Load(id)
		require.True(t, ok, id)
		assert.Equal(t, int32(1), n.(*atomic.Int32).Load(), "group %s", id)
	}
	// 40 fails every time and is retried by later calls
	n, _ := lookups.Load("40")
	assert.GreaterOrEqual(t, n.(*atomic.Int32).Load(), int32(1))
	_, ok := lookups.Load("0")
	assert.False(t, ok)

	assert.Equal(t, map[int64]string{10: "g-10", 20: "g-20"},
		GroupIDs(f.resolver.ResolveGroups(t.Context(), refs)))
}

func TestChallengeTypes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	f.mock.RegisterResponder(http.MethodGet, typesURL,
		httpmock.NewStringResponder(http.StatusOK, `{"result":{"success":true,"content":[
			{"id":39,"name":"Code","description":"code","isActive":true,"type":"develop","subTrack":"CODE"},
			{"id":38,"name":"First2Finish","type":"develop","subTrack":"FIRST_2_FINISH"}
		]}}`))

	types, err := f.resolver.ChallengeTypes(t.Context())
	require.NoError(t, err)
	require.Len(t, types, 2)
	assert.Equal(t, "Code", types[0]["name"])
	assert.Equal(t, "FIRST_2_FINISH", types[1]["subTrack"])
	assert.Equal(t, json.Number("39"), types[0]["id"])
	assert.Equal(t, true, types[0]["isActive"])
	assert.NotContains(t, types[1], "isActive")
}

func TestValueInt64(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want int64
		ok   bool
	}{
		{"number", `{"v":16543}`, 16543, true},
		{"numeric string", `{"v":"21303"}`, 21303, true},
		{"fraction", `{"v":1.5}`, 0, false},
		{"text", `{"v":"abc"}`, 0, false},
		{"null", `{"v":null}`, 0, false},
		{"object", `{"v":{"id":1}}`, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			obj, err := jason.NewObjectFromBytes([]byte(tt.body))
			require.NoError(t, err)
			v, err := obj.GetValue("v")
			require.NoError(t, err)

			got, ok := valueInt64(v)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewTokenSource_Disabled(t *testing.T) {
	t.Parallel()

	client := httpclient.New(nil)
	defer client.Close()
	assert.Nil(t, NewTokenSource(t.Context(), conf.AuthSettings{}, client))
}

func TestAsInt64(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   any
		want int64
		ok   bool
	}{
		{float64(39), 39, true},
		{"38", 38, true},
		{int64(7), 7, true},
		{"abc", 0, false},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, tt := range tests {
		got, ok := AsInt64(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}
