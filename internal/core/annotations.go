package core

import (
	"context"
	"time"

	"github.com/rememex/rememex/internal/store"
)

// AddAnnotation attaches a note to path in container (the active one if
// empty), embedding its text so it is searchable alongside indexed
// content.
func (c *Core) AddAnnotation(ctx context.Context, path, note, source, containerName string) (*store.Annotation, error) {
	if note == "" {
		return nil, newError(KindInvalidInput, "annotation note must not be empty")
	}

	c.mu.Lock()
	resolved, err := c.requireContainerName(containerName)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	cs, err := c.containerFor(resolved)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	c.embedderMu.Lock()
	vector, err := c.embedder.EmbedQuery(ctx, note)
	c.embedderMu.Unlock()
	if err != nil {
		return nil, newError(KindProviderUnavailable, "embed annotation: %v", err)
	}

	annotation, err := cs.annotations.Add(ctx, path, note, source, vector, time.Now())
	if err != nil {
		return nil, newError(KindProviderUnavailable, "save annotation: %v", err)
	}
	return annotation, nil
}

// ListAnnotations returns every annotation on path (every annotation in
// the container if path is empty), newest first.
func (c *Core) ListAnnotations(ctx context.Context, path, containerName string) ([]*store.Annotation, error) {
	c.mu.Lock()
	resolved, err := c.requireContainerName(containerName)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	cs, err := c.containerFor(resolved)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	annotations, err := cs.annotations.List(ctx, path)
	if err != nil {
		return nil, newError(KindProviderUnavailable, "list annotations: %v", err)
	}
	return annotations, nil
}

// DeleteAnnotation removes an annotation by ID from container (the
// active one if empty).
func (c *Core) DeleteAnnotation(ctx context.Context, id, containerName string) error {
	c.mu.Lock()
	resolved, err := c.requireContainerName(containerName)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	cs, err := c.containerFor(resolved)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	if err := cs.annotations.Delete(ctx, id); err != nil {
		return newError(KindInvalidInput, "delete annotation %q: %v", id, err)
	}
	return nil
}
