// Package pull implements the four-role concurrent pull pipeline of
// spec.md §4.7: a dispatcher, up to ten concurrent downloaders, a
// single inserter, and a single elaborator, cooperating through a
// mutex-guarded shared state and a condition variable.
package pull

import (
	"context"
	"fmt"
	"sync"

	"github.com/i5heu/sharesync/pkg/entity"
	"github.com/i5heu/sharesync/pkg/hash"
	"github.com/i5heu/sharesync/pkg/synctransport"
	"github.com/i5heu/sharesync/pkg/syncstore"
	"github.com/i5heu/sharesync/pkg/uploadloop"
)

// MaxDownloaders is the concurrency cap on download workers (spec.md
// §4.7, §5): up to ten downloaders, plus the fixed inserter, elaborator
// and dispatcher, for at most thirteen concurrent activities.
const MaxDownloaders = 10

// Store is the subset of syncstore.Store the pull pipeline drives.
type Store interface {
	EntityLocation(ctx context.Context, h hash.Hash32) (syncstore.Location, error)
	Promote(ctx context.Context, h hash.Hash32, e entity.Entity) (syncstore.Location, error)
	ElaborateHashes(ctx context.Context, hs map[hash.Hash32]struct{}) ([]hash.HashJWT, error)
	Batch(ctx context.Context, fn func(syncstore.BatchStore) error) error
}

// Callbacks reports pull progress (spec.md §4.7).
type Callbacks struct {
	OnDownloaded        func(n int)
	OnQueuedForDownload func(n int)
}

func (c Callbacks) downloaded(n int) {
	if c.OnDownloaded != nil {
		c.OnDownloaded(n)
	}
}

func (c Callbacks) queuedForDownload(n int) {
	if n > 0 && c.OnQueuedForDownload != nil {
		c.OnQueuedForDownload(n)
	}
}

// NoHistoryAtPathError is returned when path has no remote causal at
// all (spec.md §4.7 pre-flight step 1).
type NoHistoryAtPathError struct {
	Path synctransport.Path
}

func (e *NoHistoryAtPathError) Error() string {
	return fmt.Sprintf("pull: %+v has no history", e.Path)
}

// NoReadPermissionError surfaces a server-reported read-permission
// failure while resolving the remote causal.
type NoReadPermissionError struct {
	Path synctransport.Path
}

func (e *NoReadPermissionError) Error() string {
	return fmt.Sprintf("pull: no read permission on %+v", e.Path)
}

// Pull downloads path's remote causal and every transitively required
// entity into store, promoting them to main storage as their
// dependencies land, and returns the resolved causal hash.
func Pull(
	ctx context.Context,
	store Store,
	transport synctransport.Transport,
	path synctransport.Path,
	repoName string,
	cb Callbacks,
) (hash.Hash32, error) {
	head, err := transport.GetCausalHashByPath(ctx, path)
	if err != nil {
		return hash.Hash32{}, err
	}
	switch head.Type {
	case synctransport.GetCausalHashByPathNoReadPermission:
		return hash.Hash32{}, &NoReadPermissionError{Path: path}
	case synctransport.GetCausalHashByPathSuccess:
		if head.HashJWT == nil {
			return hash.Hash32{}, &NoHistoryAtPathError{Path: path}
		}
	default:
		return hash.Hash32{}, fmt.Errorf("pull: unexpected getCausalHashByPath response type %q", head.Type)
	}

	rootJWT := *head.HashJWT
	root, err := rootJWT.Hash()
	if err != nil {
		return hash.Hash32{}, fmt.Errorf("pull: decode root hash: %w", err)
	}

	loc, err := store.EntityLocation(ctx, root)
	if err != nil {
		return hash.Hash32{}, err
	}

	eng := newEngine(ctx, store, transport, repoName, cb)

	switch loc {
	case syncstore.LocationMain:
		return root, nil

	case syncstore.LocationTemp:
		eng.newTempQueue = append(eng.newTempQueue, []hash.Hash32{root})

	case syncstore.LocationAbsent:
		entities, err := transport.DownloadEntities(ctx, repoName, []hash.HashJWT{rootJWT})
		if err != nil {
			return hash.Hash32{}, err
		}
		cb.queuedForDownload(1)
		cb.downloaded(1)

		rootEntity, ok := entities[root]
		if !ok {
			return hash.Hash32{}, fmt.Errorf("pull: server did not return root entity %s", root)
		}
		promotedLoc, err := store.Promote(ctx, root, rootEntity)
		if err != nil {
			return hash.Hash32{}, err
		}
		if promotedLoc == syncstore.LocationTemp {
			eng.newTempQueue = append(eng.newTempQueue, []hash.Hash32{root})
		}
	}

	if err := eng.run(); err != nil {
		return hash.Hash32{}, err
	}
	return root, nil
}

type downloadedBatch struct {
	jwts     []hash.HashJWT
	entities map[hash.Hash32]entity.Entity
}

// engine holds the pipeline's shared state, guarded by mu. All four
// roles mutate it only while holding mu, and cond wakes every role
// that might have become unblocked after any mutation.
type engine struct {
	ctx       context.Context
	cancel    context.CancelFunc
	store     Store
	transport synctransport.Transport
	repoName  string
	cb        Callbacks

	downloaderWG sync.WaitGroup

	mu   sync.Mutex
	cond *sync.Cond

	hashesToDownload   map[hash.Hash32]hash.HashJWT
	inFlightOrBuffered map[hash.Hash32]struct{}
	downloadedQueue    []downloadedBatch
	newTempQueue       [][]hash.Hash32

	downloaderCount int
	inserterBusy    bool
	elaboratorBusy  bool

	done bool
	err  error
}

func newEngine(ctx context.Context, store Store, transport synctransport.Transport, repoName string, cb Callbacks) *engine {
	cancelCtx, cancel := context.WithCancel(ctx)
	e := &engine{
		ctx:                cancelCtx,
		cancel:             cancel,
		store:              store,
		transport:          transport,
		repoName:           repoName,
		cb:                 cb,
		hashesToDownload:   make(map[hash.Hash32]hash.HashJWT),
		inFlightOrBuffered: make(map[hash.Hash32]struct{}),
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// setErr must be called with mu held. It records the first error seen
// by any role and cancels the shared context; callers broadcast on cond
// so the other roles observe it and unwind.
func (e *engine) setErr(err error) {
	if e.err == nil {
		e.err = err
		e.cancel()
	}
}

func (e *engine) run() error {
	defer e.cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); e.runInserter() }()
	go func() { defer wg.Done(); e.runElaborator() }()

	e.runDispatcher()
	wg.Wait()
	e.downloaderWG.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// runDispatcher implements role 1 of spec.md §4.7: it alternates
// between dispatching a batch to a new downloader and checking the
// termination predicate, both decided atomically under mu.
func (e *engine) runDispatcher() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for {
		if e.err != nil {
			e.done = true
			e.cond.Broadcast()
			return
		}

		if len(e.hashesToDownload) > 0 && e.downloaderCount < MaxDownloaders {
			batch := e.peelBatch()
			e.downloaderCount++
			e.downloaderWG.Add(1)
			e.mu.Unlock()
			go e.runDownloader(batch)
			e.mu.Lock()
			continue
		}

		if e.downloaderCount == 0 && !e.inserterBusy && !e.elaboratorBusy &&
			len(e.downloadedQueue) == 0 && len(e.newTempQueue) == 0 && len(e.hashesToDownload) == 0 {
			e.done = true
			e.cond.Broadcast()
			return
		}

		e.cond.Wait()
	}
}

// peelBatch must be called with mu held. It moves up to
// uploadloop.MaxBatchSize hashes from hashesToDownload into
// inFlightOrBuffered and returns their JWTs.
func (e *engine) peelBatch() []hash.HashJWT {
	batch := make([]hash.HashJWT, 0, uploadloop.MaxBatchSize)
	for h, jwt := range e.hashesToDownload {
		delete(e.hashesToDownload, h)
		e.inFlightOrBuffered[h] = struct{}{}
		batch = append(batch, jwt)
		if len(batch) == uploadloop.MaxBatchSize {
			break
		}
	}
	return batch
}

// runDownloader implements role 2. It never holds mu during the
// network call.
func (e *engine) runDownloader(batch []hash.HashJWT) {
	defer e.downloaderWG.Done()

	entities, err := e.transport.DownloadEntities(e.ctx, e.repoName, batch)

	e.mu.Lock()
	e.downloaderCount--
	if err != nil {
		e.setErr(err)
		e.cond.Broadcast()
		e.mu.Unlock()
		return
	}
	e.downloadedQueue = append(e.downloadedQueue, downloadedBatch{jwts: batch, entities: entities})
	e.cond.Broadcast()
	e.mu.Unlock()

	e.cb.downloaded(len(batch))
}

// runInserter implements role 3: dequeue a downloaded batch, promote
// every entity inside a single store transaction, and forward whatever
// landed in temp to the elaborator.
func (e *engine) runInserter() {
	e.mu.Lock()
	for {
		if len(e.downloadedQueue) > 0 {
			batch := e.downloadedQueue[0]
			e.downloadedQueue = e.downloadedQueue[1:]
			e.inserterBusy = true
			e.mu.Unlock()

			tempHashes, err := e.insertBatch(batch)

			e.mu.Lock()
			for _, jwt := range batch.jwts {
				if h, hashErr := jwt.Hash(); hashErr == nil {
					delete(e.inFlightOrBuffered, h)
				}
			}
			e.inserterBusy = false
			if err != nil {
				e.setErr(err)
				e.cond.Broadcast()
				e.mu.Unlock()
				return
			}
			if len(tempHashes) > 0 {
				e.newTempQueue = append(e.newTempQueue, tempHashes)
			}
			e.cond.Broadcast()
			continue
		}

		if e.done || e.err != nil {
			e.mu.Unlock()
			return
		}
		e.cond.Wait()
	}
}

func (e *engine) insertBatch(batch downloadedBatch) ([]hash.Hash32, error) {
	var temp []hash.Hash32
	err := e.store.Batch(e.ctx, func(b syncstore.BatchStore) error {
		for h, ent := range batch.entities {
			loc, err := b.Promote(h, ent)
			if err != nil {
				return err
			}
			if loc == syncstore.LocationTemp {
				temp = append(temp, h)
			}
		}
		return nil
	})
	return temp, err
}

// runElaborator implements role 4: dequeue newly-temp hashes, ask the
// store what they still need, and merge the result into
// hashesToDownload, excluding anything already in flight.
func (e *engine) runElaborator() {
	e.mu.Lock()
	for {
		if len(e.newTempQueue) > 0 {
			hashes := e.newTempQueue[0]
			e.newTempQueue = e.newTempQueue[1:]
			e.elaboratorBusy = true
			e.mu.Unlock()

			set := make(map[hash.Hash32]struct{}, len(hashes))
			for _, h := range hashes {
				set[h] = struct{}{}
			}
			needed, err := e.store.ElaborateHashes(e.ctx, set)

			e.mu.Lock()
			e.elaboratorBusy = false
			if err != nil {
				e.setErr(err)
				e.cond.Broadcast()
				e.mu.Unlock()
				return
			}

			added := 0
			for _, jwt := range needed {
				h, hashErr := jwt.Hash()
				if hashErr != nil {
					e.setErr(hashErr)
					continue
				}
				if _, inflight := e.inFlightOrBuffered[h]; inflight {
					continue
				}
				if _, queued := e.hashesToDownload[h]; queued {
					continue
				}
				e.hashesToDownload[h] = jwt
				added++
			}
			e.cond.Broadcast()
			e.mu.Unlock()
			e.cb.queuedForDownload(added)
			e.mu.Lock()
			continue
		}

		if e.done || e.err != nil {
			e.mu.Unlock()
			return
		}
		e.cond.Wait()
	}
}
