// Copyright (c) 2026 F11eSync Authors. All rights reserved.
// Use of this source code is governed by the MIT license
// that can be found in the LICENSE file.

package server

import "golang.org/x/time/rate"

// newBandwidthLimiter builds a token-bucket limiter capping outbound
// chunk_data emission at maxBytesPerSec, with a burst of one second's worth
// of traffic or one full chunk, whichever is larger, so a single chunk is
// never held back indefinitely by its own size. Disabled (nil) bandwidth caps never reach this constructor; see
// config.BandwidthConfig and Engine.waitBandwidth.
func newBandwidthLimiter(maxBytesPerSec int64) *rate.Limiter {
	if maxBytesPerSec <= 0 {
		return nil
	}
	burst := int(maxBytesPerSec)
	if burst < chunkSize {
		burst = chunkSize
	}
	return rate.NewLimiter(rate.Limit(maxBytesPerSec), burst)
}
