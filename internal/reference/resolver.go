// Package reference resolves the cross-system lookup data a challenge
// document needs: type ids, timeline templates, project linkage, terms ids
// and group ids. Results live in a per-run Caches value.
package reference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/antonholmquist/jason"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/challenge-migration/internal/errors"
	"github.com/tphakala/challenge-migration/internal/httpclient"
	"github.com/tphakala/challenge-migration/internal/logger"
)

// NotAvailable is the timeline id used when no template exists for a type.
const NotAvailable = "N/A"

// groupLookupConcurrency bounds parallel group id lookups.
const groupLookupConcurrency = 4

// TypeSource lists stored documents. The document store implements it.
type TypeSource interface {
	ScanAll(ctx context.Context, table string) ([]map[string]any, error)
}

// Timeline is the timeline template of a challenge type.
type Timeline struct {
	ID    string
	Name  string
	Found bool
}

// Term maps a new terms-of-use id to its legacy id.
type Term struct {
	ID       string
	LegacyID int64
}

// GroupRef is a legacy group attached to a challenge.
type GroupRef struct {
	ChallengeID   int64
	LegacyGroupID int64
}

// ResolvedGroup is a GroupRef with its new group id.
type ResolvedGroup struct {
	GroupRef
	ID string
}

// Config holds the lookup endpoints.
type Config struct {
	TimelineURL        string
	ProjectsURL        string
	TermsURL           string
	GroupsURL          string
	ChallengeTypesURL  string
	TermsPerPage       int
	ChallengeTypeTable string
}

// Resolver performs the lookups and memoizes them in Caches.
type Resolver struct {
	cfg    Config
	client *httpclient.Client
	tokens oauth2.TokenSource
	types  TypeSource
	caches *Caches
	log    logger.Logger
}

// NewResolver creates a resolver. tokens may be nil for unauthenticated
// endpoints; caches may be nil for a fresh set.
func NewResolver(cfg Config, client *httpclient.Client, tokens oauth2.TokenSource, types TypeSource, caches *Caches, log logger.Logger) *Resolver {
	if cfg.TermsPerPage <= 0 {
		cfg.TermsPerPage = 100
	}
	if caches == nil {
		caches = NewCaches()
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Resolver{cfg: cfg, client: client, tokens: tokens, types: types, caches: caches, log: log}
}

// Caches returns the caches backing the resolver.
func (r *Resolver) Caches() *Caches { return r.caches }

// TypeMapping returns legacy type id to new type id, built once from a scan
// of the challenge type table.
func (r *Resolver) TypeMapping(ctx context.Context) (map[int64]string, error) {
	if m, ok := r.caches.typeMapping(); ok {
		return m, nil
	}

	v, err, _ := r.caches.flight.Do("types", func() (any, error) {
		if m, ok := r.caches.typeMapping(); ok {
			return m, nil
		}
		docs, err := r.types.ScanAll(ctx, r.cfg.ChallengeTypeTable)
		if err != nil {
			return nil, errors.New(err).
				Component("reference").
				Category(errors.CategoryReference).
				Context("operation", "scan-challenge-types").
				Context("table", r.cfg.ChallengeTypeTable).
				Build()
		}
		m := TypeMappingFrom(docs)
		r.caches.setTypeMapping(m)
		r.log.Info("challenge type mapping loaded", logger.Int("types", len(m)))
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[int64]string), nil
}

// TypeMappingFrom reduces challenge type documents to legacy id -> id,
// skipping documents without a legacy id.
func TypeMappingFrom(docs []map[string]any) map[int64]string {
	m := make(map[int64]string, len(docs))
	for _, doc := range docs {
		legacyID, ok := AsInt64(doc["legacyId"])
		if !ok {
			continue
		}
		id, _ := doc["id"].(string)
		m[legacyID] = id
	}
	return m
}

// Timeline returns the timeline template of a type. A missing template, or a
// failed lookup, yields the "N/A" sentinel; failures are not cached.
func (r *Resolver) Timeline(ctx context.Context, typeID string) Timeline {
	if t, ok := r.caches.timeline(typeID); ok {
		return t
	}

	v, _, _ := r.caches.flight.Do("timeline:"+typeID, func() (any, error) {
		if t, ok := r.caches.timeline(typeID); ok {
			return t, nil
		}
		t, err := r.fetchTimeline(ctx, typeID)
		if err != nil {
			r.log.Warn("timeline lookup failed, using sentinel",
				logger.String("type_id", typeID),
				logger.Error(err))
			return Timeline{ID: NotAvailable}, nil
		}
		r.caches.timelines.Set(typeID, t, 0)
		return t, nil
	})
	return v.(Timeline)
}

// Timelines pre-warms the timeline cache and returns type id -> template id.
func (r *Resolver) Timelines(ctx context.Context, typeIDs []string) map[string]string {
	out := make(map[string]string, len(typeIDs))
	for _, id := range typeIDs {
		if id == "" {
			continue
		}
		out[id] = r.Timeline(ctx, id).ID
	}
	return out
}

func (r *Resolver) fetchTimeline(ctx context.Context, typeID string) (Timeline, error) {
	body, _, err := r.client.GetBody(ctx, withQuery(r.cfg.TimelineURL, url.Values{"typeId": {typeID}}), nil)
	if err != nil {
		return Timeline{}, err
	}
	first, err := firstObject(body)
	if err != nil {
		return Timeline{}, err
	}
	if first == nil {
		return Timeline{ID: NotAvailable}, nil
	}
	id, err := first.GetString("id")
	if err != nil {
		return Timeline{ID: NotAvailable}, nil
	}
	name, _ := first.GetString("name")
	return Timeline{ID: id, Name: name, Found: true}, nil
}

// Project returns the id of the project linked to a legacy direct project,
// or nil when none exists. Results are not cached.
func (r *Resolver) Project(ctx context.Context, directProjectID int64) (*int64, error) {
	header, err := r.authHeader()
	if err != nil {
		return nil, err
	}
	u := withQuery(r.cfg.ProjectsURL, url.Values{"directProjectId": {strconv.FormatInt(directProjectID, 10)}})
	body, _, err := r.client.GetBody(ctx, u, header)
	if err != nil {
		return nil, lookupError(err, "project", directProjectID)
	}
	first, err := firstObject(body)
	if err != nil {
		return nil, lookupError(err, "project", directProjectID)
	}
	if first == nil {
		return nil, nil
	}
	v, err := first.GetValue("id")
	if err != nil {
		return nil, nil
	}
	id, ok := valueInt64(v)
	if !ok {
		return nil, nil
	}
	return &id, nil
}

// Terms returns every terms-of-use entry, paging until an empty page or
// past the X-Total-Pages header. The list is fetched once per run.
func (r *Resolver) Terms(ctx context.Context) ([]Term, error) {
	if terms, ok := r.caches.termList(); ok {
		return terms, nil
	}

	v, err, _ := r.caches.flight.Do("terms", func() (any, error) {
		if terms, ok := r.caches.termList(); ok {
			return terms, nil
		}
		terms, err := r.fetchTerms(ctx)
		if err != nil {
			return nil, err
		}
		r.caches.setTerms(terms)
		r.log.Info("terms loaded", logger.Int("terms", len(terms)))
		return terms, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Term), nil
}

func (r *Resolver) fetchTerms(ctx context.Context) ([]Term, error) {
	header, err := r.authHeader()
	if err != nil {
		return nil, err
	}

	var all []Term
	for page := 1; ; {
		u := withQuery(r.cfg.TermsURL, url.Values{
			"page":    {strconv.Itoa(page)},
			"perPage": {strconv.Itoa(r.cfg.TermsPerPage)},
		})
		body, respHeader, err := r.client.GetBody(ctx, u, header)
		if err != nil {
			return nil, lookupError(err, "terms", page)
		}
		obj, err := jason.NewObjectFromBytes(body)
		if err != nil {
			return nil, lookupError(err, "terms", page)
		}
		items, err := obj.GetObjectArray("result")
		if err != nil || len(items) == 0 {
			break
		}
		for _, item := range items {
			id, _ := item.GetString("id")
			lv, err := item.GetValue("legacyId")
			if err != nil {
				continue
			}
			legacyID, ok := valueInt64(lv)
			if !ok {
				continue
			}
			all = append(all, Term{ID: id, LegacyID: legacyID})
		}

		page++
		if total, err := strconv.Atoi(respHeader.Get("X-Total-Pages")); err == nil && page > total {
			break
		}
	}
	return all, nil
}

// TermIDs indexes terms by legacy id.
func TermIDs(terms []Term) map[int64]string {
	m := make(map[int64]string, len(terms))
	for _, t := range terms {
		if _, dup := m[t.LegacyID]; !dup {
			m[t.LegacyID] = t.ID
		}
	}
	return m
}

// ResolveGroups maps legacy group ids to new ids. Each distinct legacy id is
// looked up at most once per run; concurrent misses share one request.
// Unresolved ids and failed lookups are logged and left out.
func (r *Resolver) ResolveGroups(ctx context.Context, refs []GroupRef) []ResolvedGroup {
	distinct := make(map[int64]struct{})
	for _, ref := range refs {
		if ref.LegacyGroupID != 0 {
			distinct[ref.LegacyGroupID] = struct{}{}
		}
	}

	var mu sync.Mutex
	resolved := make(map[int64]string, len(distinct))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(groupLookupConcurrency)
	for legacyID := range distinct {
		g.Go(func() error {
			if id, ok := r.group(gctx, legacyID); ok {
				mu.Lock()
				resolved[legacyID] = id
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]ResolvedGroup, 0, len(refs))
	for _, ref := range refs {
		if id, ok := resolved[ref.LegacyGroupID]; ok {
			out = append(out, ResolvedGroup{GroupRef: ref, ID: id})
		}
	}
	return out
}

// GroupIDs indexes resolved groups by legacy id.
func GroupIDs(groups []ResolvedGroup) map[int64]string {
	m := make(map[int64]string, len(groups))
	for _, g := range groups {
		m[g.LegacyGroupID] = g.ID
	}
	return m
}

func (r *Resolver) group(ctx context.Context, legacyID int64) (string, bool) {
	if id, ok := r.caches.group(legacyID); ok {
		return id, id != ""
	}

	v, err, _ := r.caches.flight.Do("group:"+groupKey(legacyID), func() (any, error) {
		if id, ok := r.caches.group(legacyID); ok {
			return id, nil
		}
		id, err := r.fetchGroup(ctx, legacyID)
		if err != nil {
			return "", err
		}
		if id == "" {
			r.log.Warn("group not found", logger.Int64("legacy_group_id", legacyID))
		}
		r.caches.setGroup(legacyID, id)
		return id, nil
	})
	if err != nil {
		r.log.Warn("group lookup failed",
			logger.Int64("legacy_group_id", legacyID),
			logger.Error(err))
		return "", false
	}
	id := v.(string)
	return id, id != ""
}

func (r *Resolver) fetchGroup(ctx context.Context, legacyID int64) (string, error) {
	header, err := r.authHeader()
	if err != nil {
		return "", err
	}
	u := withQuery(r.cfg.GroupsURL, url.Values{"oldId": {groupKey(legacyID)}})
	body, _, err := r.client.GetBody(ctx, u, header)
	if err != nil {
		return "", lookupError(err, "group", legacyID)
	}
	first, err := firstObject(body)
	if err != nil {
		return "", lookupError(err, "group", legacyID)
	}
	if first == nil {
		return "", nil
	}
	id, err := first.GetString("id")
	if err != nil {
		return "", nil
	}
	return id, nil
}

// ChallengeTypes lists the legacy challenge types (result.content).
func (r *Resolver) ChallengeTypes(ctx context.Context) ([]map[string]any, error) {
	body, _, err := r.client.GetBody(ctx, r.cfg.ChallengeTypesURL, nil)
	if err != nil {
		return nil, lookupError(err, "challenge-types", 0)
	}
	obj, err := jason.NewObjectFromBytes(body)
	if err != nil {
		return nil, lookupError(err, "challenge-types", 0)
	}
	items, err := obj.GetObjectArray("result", "content")
	if err != nil {
		return nil, lookupError(err, "challenge-types", 0)
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		raw, err := item.Marshal()
		if err != nil {
			return nil, lookupError(err, "challenge-types", 0)
		}
		m, err := decodeMap(raw)
		if err != nil {
			return nil, lookupError(err, "challenge-types", 0)
		}
		out = append(out, m)
	}
	return out, nil
}

// decodeMap decodes a JSON object keeping numbers as json.Number, the way
// jason holds them.
func decodeMap(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// valueInt64 reads a JSON number or a numeric string.
func valueInt64(v *jason.Value) (int64, bool) {
	if n, err := v.Number(); err == nil {
		return AsInt64(n)
	}
	if s, err := v.String(); err == nil {
		return AsInt64(s)
	}
	return 0, false
}

// firstObject returns the first element of a JSON array body, or nil for an
// empty body, empty array or non-object element.
func firstObject(body []byte) (*jason.Object, error) {
	if len(body) == 0 {
		return nil, nil
	}
	v, err := jason.NewValueFromBytes(body)
	if err != nil {
		return nil, err
	}
	arr, err := v.Array()
	if err != nil || len(arr) == 0 {
		return nil, nil
	}
	obj, err := arr[0].Object()
	if err != nil {
		return nil, nil
	}
	return obj, nil
}

func withQuery(base string, q url.Values) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?" + q.Encode()
	}
	existing := u.Query()
	for k, vs := range q {
		existing[k] = vs
	}
	u.RawQuery = existing.Encode()
	return u.String()
}

func lookupError(err error, lookup string, key any) error {
	b := errors.New(err).
		Component("reference").
		Category(errors.CategoryReference).
		Context("lookup", lookup).
		Context("key", fmt.Sprint(key))
	var se *httpclient.StatusError
	if errors.As(err, &se) {
		b = b.Context("status", se.StatusCode)
		if se.StatusCode == http.StatusNotFound {
			b = b.Category(errors.CategoryNotFound)
		}
	}
	return b.Build()
}

// AsInt64 converts a decoded JSON id (number, json.Number or numeric string)
// to int64.
func AsInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), true
	case interface{ Int64() (int64, error) }:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}
