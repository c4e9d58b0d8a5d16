package audio

import (
	"bytes"
	"math/rand"
	"sync"
	"testing"
)

func TestFragmentBufferConcatenation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		buffer := NewFragmentBuffer()
		var expected []byte

		count := rng.Intn(40)
		for i := 0; i < count; i++ {
			fragment := make([]byte, rng.Intn(512))
			rng.Read(fragment)
			expected = append(expected, fragment...)

			if err := buffer.Append(fragment); err != nil {
				t.Fatalf("Append failed: %v", err)
			}
		}

		payload := NewVoicePayload(buffer)
		if !bytes.Equal(payload.Data(), expected) {
			t.Fatalf("Round %d: payload differs from concatenated fragments", round)
		}

		if payload.Size() != len(expected) {
			t.Errorf("Round %d: expected size %d, got %d", round, len(expected), payload.Size())
		}
	}
}

func TestFragmentBufferCopiesInput(t *testing.T) {
	buffer := NewFragmentBuffer()
	fragment := []byte{1, 2, 3}
	buffer.Append(fragment)

	// Capture readers reuse their read buffer
	fragment[0] = 9

	if got := buffer.Bytes(); !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Errorf("Expected buffered copy [1 2 3], got %v", got)
	}
}

func TestFragmentBufferSeal(t *testing.T) {
	buffer := NewFragmentBuffer()
	buffer.Append([]byte("abc"))
	buffer.Seal()

	if err := buffer.Append([]byte("def")); err != ErrSealed {
		t.Errorf("Expected ErrSealed, got %v", err)
	}

	stats := buffer.GetStats()
	if stats.Fragments != 1 || stats.Bytes != 3 || !stats.Sealed {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestFragmentBufferIgnoresEmpty(t *testing.T) {
	buffer := NewFragmentBuffer()
	buffer.Append(nil)
	buffer.Append([]byte{})

	if buffer.Len() != 0 {
		t.Errorf("Expected no fragments, got %d", buffer.Len())
	}
}

func TestFragmentBufferConcurrentReaders(t *testing.T) {
	buffer := NewFragmentBuffer()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			buffer.Append([]byte{byte(i)})
		}
	}()

	for i := 0; i < 100; i++ {
		_ = buffer.GetStats()
	}
	wg.Wait()

	data := buffer.Bytes()
	for i, b := range data {
		if int(b) != i {
			t.Fatalf("Byte %d out of order: got %d", i, b)
		}
	}
}

func TestFilePayload(t *testing.T) {
	source := []byte("RIFF....")
	payload := NewFilePayload(source)
	source[0] = 'X'

	if payload.Filename != "voice_input.wav" || payload.ContentType != "audio/wav" || payload.FieldName != "file" {
		t.Errorf("Unexpected payload identity: %+v", payload)
	}

	if string(payload.Data()) != "RIFF...." {
		t.Errorf("Payload should not alias its source, got %q", payload.Data())
	}
}
