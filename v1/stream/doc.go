// Package stream defines the pull-based backpressure contract used across
// airlock: publishers emit values only against demand requested by their
// subscriber, and a subscriber may cancel at any point. The contract mirrors
// the Reactive Streams rules that matter here: signals to one subscriber are
// serialized, the number of OnNext calls never exceeds cumulative requested
// demand, and no further signals follow a terminal OnError/OnComplete.
//
// Besides the interfaces, the package ships small building blocks: canned
// publishers ([Just], [Empty], [Fail]), a unicast [Pipe] for bridging
// imperative producers such as broker callbacks, and blocking collection
// helpers ([Collect], [First]) for tests and edge-of-world code.
package stream
