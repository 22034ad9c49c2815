// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package buffer

import (
	"bytes"
	"testing"
)

func TestOutMessageAppend(t *testing.T) {
	var om OutMessage
	om.Reset()

	const wantPayloadStr = "tacoburrito"
	wantPayload := []byte(wantPayloadStr)
	om.Append(wantPayload[:4])
	om.Append(wantPayload[4:])

	wantLen := OutMessageHeaderSize + len(wantPayloadStr)
	if got := om.Len(); got != wantLen {
		t.Errorf("om.Len() = %d, want %d", got, wantLen)
	}

	b := om.Bytes()
	want := append(make([]byte, OutMessageHeaderSize), wantPayload...)
	if !bytes.Equal(b, want) {
		t.Error("messages differ")
	}
}

func TestOutMessageAppendString(t *testing.T) {
	var om OutMessage
	om.Reset()

	const wantPayload = "tacoburrito"
	om.AppendString(wantPayload[:4])
	om.AppendString(wantPayload[4:])

	wantLen := OutMessageHeaderSize + len(wantPayload)
	if got := om.Len(); got != wantLen {
		t.Errorf("om.Len() = %d, want %d", got, wantLen)
	}

	b := om.Bytes()
	want := append(make([]byte, OutMessageHeaderSize), wantPayload...)
	if !bytes.Equal(b, want) {
		t.Error("messages differ")
	}
}

func TestOutMessageShrinkTo(t *testing.T) {
	var om OutMessage
	om.Reset()
	om.AppendString("taco")
	om.AppendString("burrito")

	om.ShrinkTo(OutMessageHeaderSize + len("taco"))

	wantLen := OutMessageHeaderSize + len("taco")
	if got := om.Len(); got != wantLen {
		t.Errorf("om.Len() = %d, want %d", got, wantLen)
	}

	b := om.Bytes()
	want := append(make([]byte, OutMessageHeaderSize), "taco"...)
	if !bytes.Equal(b, want) {
		t.Error("messages differ")
	}
}

func TestOutMessageReset(t *testing.T) {
	var om OutMessage

	const trials = 10
	for i := 0; i < trials; i++ {
		h := om.OutHeader()
		h.Len = 17
		h.Error = -5
		h.Unique = 999

		if p := om.GrowNoZero(128); p == nil {
			t.Fatal("GrowNoZero failed")
		}

		om.Reset()

		if got, want := om.Len(), OutMessageHeaderSize; got != want {
			t.Fatalf("om.Len() = %d, want %d", got, want)
		}

		h = om.OutHeader()
		if h.Len != 0 || h.Error != 0 || h.Unique != 0 {
			t.Fatalf("header not zeroed: %+v", h)
		}
	}
}

func TestOutMessageGrow(t *testing.T) {
	var om OutMessage
	om.Reset()

	const payloadSize = 1234
	if p := om.Grow(payloadSize); p == nil {
		t.Fatal("Grow failed")
	}

	wantLen := OutMessageHeaderSize + payloadSize
	if got := om.Len(); got != wantLen {
		t.Errorf("om.Len() = %d, want %d", got, wantLen)
	}

	b := om.Bytes()
	for i, x := range b[OutMessageHeaderSize:] {
		if x != 0 {
			t.Fatalf("non-zero byte 0x%02x at payload offset %d", x, i)
		}
	}
}

func BenchmarkOutMessageReset(b *testing.B) {
	var om OutMessage
	for i := 0; i < b.N; i++ {
		om.Reset()
	}
}

func BenchmarkOutMessageGrowShrink(b *testing.B) {
	var om OutMessage
	for i := 0; i < b.N; i++ {
		om.Grow(MaxReadSize - OutMessageHeaderSize)
		om.ShrinkTo(OutMessageHeaderSize)
	}
	b.SetBytes(int64(MaxReadSize))
}
