package queuez

import "github.com/zoobzio/clockz"

// Clock provides time operations. Queues stamp errors and statistics with it and
// use it for submit timeouts; tests inject clockz.NewFakeClock().
type Clock = clockz.Clock

// Ticker delivers ticks at intervals.
type Ticker = clockz.Ticker

// RealClock is the default Clock using standard time.
var RealClock Clock = clockz.RealClock
