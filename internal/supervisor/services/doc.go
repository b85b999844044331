// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

/*
Package services adapts blocking components to suture.Service.

  - APIService runs the recommendation API server, drains in-flight
    requests within DrainTimeout on shutdown and returns bind failures so
    suture restarts it.
  - RefreshService regenerates recommendations for configured users on an
    interval, forcing a cache bypass so results and warmer input stay fresh.

The warmer implements suture.Service itself and needs no wrapper.

Every Serve returns ctx.Err() on shutdown so suture does not treat the
stop as a failure.
*/
package services
