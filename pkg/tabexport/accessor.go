package tabexport

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// accessorTable maps each component to one accessor per column. It is
// filled once by a background discovery task; readers wait on done.
type accessorTable struct {
	mu     sync.Mutex
	byComp map[*ComponentConfig][]Accessor
	done   chan struct{}
}

// discoverAccessors resolves column accessors for every component
// concurrently and closes the returned table's done channel when finished.
func discoverAccessors(sheets []*SheetConfig, log zerolog.Logger) *accessorTable {
	t := &accessorTable{
		byComp: make(map[*ComponentConfig][]Accessor),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(t.done)
		var g errgroup.Group
		for _, sheet := range sheets {
			for _, comp := range sheet.Components {
				g.Go(func() error {
					resolved := resolveComponent(comp, log)
					t.mu.Lock()
					t.byComp[comp] = resolved
					t.mu.Unlock()
					return nil
				})
			}
		}
		_ = g.Wait()
	}()
	return t
}

// Wait blocks until discovery has completed.
func (t *accessorTable) Wait() {
	<-t.done
}

// WaitContext blocks until discovery has completed or ctx is done.
func (t *accessorTable) WaitContext(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// For returns the accessors of comp. It waits for discovery.
func (t *accessorTable) For(comp *ComponentConfig) []Accessor {
	t.Wait()
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byComp[comp]
}

func resolveComponent(comp *ComponentConfig, log zerolog.Logger) []Accessor {
	out := make([]Accessor, len(comp.Columns))
	provider, _ := comp.Source.(AccessorProvider)
	for i, col := range comp.Columns {
		switch {
		case col.Accessor != nil:
			out[i] = col.Accessor
		case provider != nil:
			acc, ok := provider.Accessor(col.Key)
			if !ok {
				err := &AccessorResolutionError{Component: comp.ID, Key: col.Key}
				log.Warn().Err(err).Msg("column will be written empty")
				continue
			}
			out[i] = acc
		default:
			src, key := comp.Source, col.Key
			out[i] = func(item interface{}) (interface{}, error) {
				return src.Value(item, key)
			}
		}
	}
	return out
}
