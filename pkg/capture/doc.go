// Package capture takes screenshots of user pages.
//
// The Capturer interface is the only thing the update cycle knows about
// screenshots. CommandCapturer shells out to a headless browser (or any
// program taking `{url}` and `{output}` arguments), kills it when the
// configured timeout expires, and then derives two things from the written
// image: an MD5 fingerprint and a thumbnail scaled with
// github.com/disintegration/imaging. Fake answers with canned results.
package capture
