package docstore

import "sync"

// subscriberSet is the in-process live-query registry shared by both store
// implementations. Callbacks run synchronously after a batch commits, in
// registration order; consumers needing cross-process delivery layer it over
// the websocket hub.
type subscriberSet struct {
	mu   sync.Mutex
	next int
	subs map[int]*subscriber
}

type subscriber struct {
	id         int
	collection string
	filters    []Filter
	fn         ChangeFunc
	set        *subscriberSet
}

func newSubscriberSet() *subscriberSet {
	return &subscriberSet{subs: make(map[int]*subscriber)}
}

func (s *subscriberSet) add(collection string, filters []Filter, fn ChangeFunc) Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	sub := &subscriber{id: s.next, collection: collection, filters: filters, fn: fn, set: s}
	s.subs[sub.id] = sub
	return sub
}

func (sub *subscriber) Cancel() {
	sub.set.mu.Lock()
	defer sub.set.mu.Unlock()
	delete(sub.set.subs, sub.id)
}

// notify delivers a committed batch's effects to matching subscribers.
// Changed documents are filtered per subscription; removals are delivered to
// every subscriber of the collection since a removed document's field values
// are no longer known.
func (s *subscriberSet) notify(changed []Document, removed map[string][]string) {
	s.mu.Lock()
	subs := make([]*subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		var matched []Document
		for _, doc := range changed {
			if doc.Collection == sub.collection && matches(doc, sub.filters) {
				matched = append(matched, doc)
			}
		}
		removedIDs := removed[sub.collection]
		if len(matched) > 0 || len(removedIDs) > 0 {
			sub.fn(matched, removedIDs)
		}
	}
}
