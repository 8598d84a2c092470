package engine

import "time"

// publishSnapshot atomically republishes the read-only Snapshot consumed
// by playerclient queries, per spec.md §9's shared-mutable-handle
// resolution.
func (e *Engine) publishSnapshot() {
	var lv *LoadedView
	total := time.Duration(0)

	items := e.queue.List()
	for _, it := range items {
		total += it.Meta.Duration
	}

	count := len(items)
	if e.state.loaded != nil {
		lv = &LoadedView{
			Origin:    e.state.loaded.Origin,
			Item:      e.state.loaded.Item,
			StartedAt: e.state.loaded.StartedAt,
			Offset:    e.state.loaded.Offset,
		}
		total += e.state.loaded.Item.Meta.Duration
		count++
	}

	e.snapshot.Store(&Snapshot{
		Paused:   e.state.paused,
		Loaded:   lv,
		Volume:   e.state.volume,
		QueueLen: count,
		QueueDur: total,
	})
}

// publishCurrentSong writes (or blanks) the current-song file to reflect
// the present Loaded/paused state, per spec.md §4.6.
func (e *Engine) publishCurrentSong() {
	if e.state.loaded == nil {
		e.current.Blank()
		return
	}
	elapsed := e.state.loaded.Offset + time.Since(e.state.loaded.StartedAt)
	e.current.Write(e.state.loaded.Item, elapsed, e.state.paused)
}
