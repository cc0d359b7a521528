// Package ratelimit paces calls to the Flickr API.
//
// Flickr publishes no hard quota for authenticated callers, so the mirror
// spaces requests with a fixed courtesy delay after each call and backs off
// for a long cool-down when the provider answers 429 Too Many Requests.
//
//	pacer := ratelimit.NewPacer(nil, 500*time.Millisecond, 5*time.Minute, log)
//	if err := pacer.Courtesy(ctx); err != nil {
//		return err
//	}
package ratelimit
