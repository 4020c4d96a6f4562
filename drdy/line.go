// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package drdy

import "github.com/warthog618/go-gpiocdev"

// Consumer is the consumer label applied to the requested nDRDY line.
const Consumer = "ads131m-drdy"

// Request requests the nDRDY line at offset on the named chip, delivering its
// falling edges to f.
//
// Additional options, such as gpiocdev.WithDebounce, are appended to the
// request.
func Request(chip string, offset int, f *Flag, options ...gpiocdev.LineReqOption) (*gpiocdev.Line, error) {
	opts := []gpiocdev.LineReqOption{
		gpiocdev.WithConsumer(Consumer),
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(f.HandleEvent),
	}
	opts = append(opts, options...)
	return gpiocdev.RequestLine(chip, offset, opts...)
}
