package dashboard

// OnLoaderJoin calls fn once a Fetch caller has joined the shared call.
func OnLoaderJoin(l *Loader, fn func(userID string)) {
	l.joined = fn
}

// PageSettled returns the channel closed when the current mount settles.
func PageSettled(p *Page) <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settled
}
