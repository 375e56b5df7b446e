// Package planner orchestrates one scan run: it reads
// the candidate files, extracts image references,
// resolves available tags through the registry, and
// assembles the change plan. Failures stay local: an
// unreadable file or an unreachable repository is logged
// and skipped, never aborting the run.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/byte4ever/autoupdater/updater/pattern"
	"github.com/byte4ever/autoupdater/updater/plan"
	"github.com/byte4ever/autoupdater/updater/registry"
	"github.com/byte4ever/autoupdater/updater/scan"
	"github.com/byte4ever/autoupdater/updater/selector"
)

// Builder produces a Plan from a list of candidate file
// paths.
type Builder struct {
	// Registry resolves repository names to tag lists.
	Registry registry.Client

	// Patterns is the active pattern set, built-in
	// image pattern first.
	Patterns []pattern.Pattern

	// ReadFile loads one file's text. Defaults to
	// os.ReadFile.
	ReadFile func(path string) (string, error)

	// Parallelism bounds concurrent registry lookups.
	// Values below 2 keep resolution sequential.
	Parallelism int
}

// lookupKey identifies one registry resolution. The same
// repository at the same current tag is only resolved
// once per run.
type lookupKey struct {
	repository string
	currentTag string
}

// lookupResult caches the selector outcome for a key.
type lookupResult struct {
	newTag string
	update bool
	failed bool
}

// Build scans paths in order and returns the assembled
// plan. Entry order is file scan order, then line order;
// it never depends on lookup scheduling. The returned
// error is non-nil only on context cancellation.
func (b *Builder) Build(
	ctx context.Context,
	paths []string,
) (plan.Plan, error) {
	const errCtx = "building update plan"

	readFile := b.ReadFile
	if readFile == nil {
		readFile = func(path string) (string, error) {
			data, err := os.ReadFile(path) //nolint:gosec // paths from CLI glob
			if err != nil {
				return "", err
			}

			return string(data), nil
		}
	}

	extractor := scan.NewExtractor(b.Patterns)

	// First configured pattern wins for a field name,
	// matching the extractor's dispatch order.
	fieldPatterns := make(
		map[string]pattern.Pattern, len(b.Patterns),
	)
	for _, pat := range b.Patterns {
		if _, ok := fieldPatterns[pat.Field]; !ok {
			fieldPatterns[pat.Field] = pat
		}
	}

	var refs []scan.Reference

	for _, path := range paths {
		text, err := readFile(path)
		if err != nil {
			slog.Warn(
				"cannot read file, skipping",
				"file", path,
				"error", err,
			)

			continue
		}

		refs = append(
			refs, extractor.Extract(path, text)...,
		)
	}

	results, err := b.resolve(ctx, refs)
	if err != nil {
		return plan.Plan{}, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return b.assemble(refs, fieldPatterns, results), nil
}

// resolve computes the selector result for every unique
// (repository, currentTag) key among refs.
func (b *Builder) resolve(
	ctx context.Context,
	refs []scan.Reference,
) (map[lookupKey]lookupResult, error) {
	keys := uniqueKeys(refs)

	if b.Parallelism > 1 {
		return b.resolveParallel(ctx, keys)
	}

	results := make(
		map[lookupKey]lookupResult, len(keys),
	)

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		results[key] = b.resolveOne(ctx, key)
	}

	return results, nil
}

// resolveParallel resolves keys with a bounded worker
// pool. One key's failure never cancels siblings.
func (b *Builder) resolveParallel(
	ctx context.Context,
	keys []lookupKey,
) (map[lookupKey]lookupResult, error) {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	results := make(
		map[lookupKey]lookupResult, len(keys),
	)

	sem := make(chan struct{}, b.Parallelism)

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(key lookupKey) {
			defer wg.Done()
			defer func() { <-sem }()

			res := b.resolveOne(ctx, key)

			mu.Lock()
			results[key] = res
			mu.Unlock()
		}(key)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// resolveOne lists the repository tags and runs the
// selector. A lookup failure is recorded, logged, and
// isolated to this key.
func (b *Builder) resolveOne(
	ctx context.Context,
	key lookupKey,
) lookupResult {
	tags, err := b.Registry.ListTags(
		ctx, key.repository,
	)
	if err != nil {
		slog.Warn(
			"registry lookup failed, skipping image",
			"repository", key.repository,
			"error", err,
		)

		return lookupResult{failed: true}
	}

	newTag, ok := selector.Select(key.currentTag, tags)

	return lookupResult{
		newTag: newTag,
		update: ok,
	}
}

// assemble walks refs in canonical order and emits one
// entry per reference whose resolution proposed an
// update.
func (b *Builder) assemble(
	refs []scan.Reference,
	fieldPatterns map[string]pattern.Pattern,
	results map[lookupKey]lookupResult,
) plan.Plan {
	var entries []plan.Entry

	for _, ref := range refs {
		res, ok := results[lookupKey{
			repository: ref.Repository,
			currentTag: ref.CurrentTag,
		}]
		if !ok || res.failed || !res.update {
			continue
		}

		pat, ok := fieldPatterns[ref.Field]
		if !ok {
			continue
		}

		newRaw, ok := pat.Invert(
			ref.Repository + ":" + res.newTag,
		)
		if !ok {
			slog.Warn(
				"cannot map new tag back to field value",
				"reference", ref.String(),
				"new_tag", res.newTag,
			)

			continue
		}

		entries = append(entries, plan.Entry{
			Reference:   ref,
			NewTag:      res.newTag,
			NewRawValue: newRaw,
		})
	}

	return plan.Plan{Entries: entries}
}

// uniqueKeys returns the lookup keys of refs in
// first-seen order.
func uniqueKeys(refs []scan.Reference) []lookupKey {
	seen := make(map[lookupKey]struct{}, len(refs))

	var keys []lookupKey

	for _, ref := range refs {
		key := lookupKey{
			repository: ref.Repository,
			currentTag: ref.CurrentTag,
		}

		if _, ok := seen[key]; ok {
			continue
		}

		seen[key] = struct{}{}
		keys = append(keys, key)
	}

	return keys
}
