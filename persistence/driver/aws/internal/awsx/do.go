// Package awsx contains utilities for calling AWS APIs.
package awsx

import "context"

// Do performs an AWS API request.
//
// If decorate is non-nil it is called before the request is sent. It may
// modify the input in-place and returns options that are applied to the
// request.
func Do[In, Out, Options any](
	ctx context.Context,
	send func(context.Context, *In, ...func(*Options)) (*Out, error),
	decorate func(*In) []func(*Options),
	in *In,
) (*Out, error) {
	var options []func(*Options)
	if decorate != nil {
		options = decorate(in)
	}

	return send(ctx, in, options...)
}
