package common

import (
	"fmt"
)

// BlockAssembler cuts an arbitrary stream of samples into fixed-size blocks.
// With hopSize < blockSize consecutive blocks overlap.
type BlockAssembler struct {
	buffer    []float32
	blockSize int
	hopSize   int
	writePos  int
}

// NewBlockAssembler creates a block assembler; hopSize <= 0 means no overlap
func NewBlockAssembler(blockSize, hopSize int) (*BlockAssembler, error) {
	if blockSize <= 0 {
		return nil, fmt.Errorf("block size must be positive: %d", blockSize)
	}
	if hopSize <= 0 || hopSize > blockSize {
		hopSize = blockSize
	}
	return &BlockAssembler{
		buffer:    make([]float32, blockSize),
		blockSize: blockSize,
		hopSize:   hopSize,
	}, nil
}

// Write appends samples and calls emit with a fresh copy of every block that
// completes. It stops at the first emit error.
func (ba *BlockAssembler) Write(samples []float32, emit func(block []float32) error) error {
	for len(samples) > 0 {
		n := copy(ba.buffer[ba.writePos:], samples)
		ba.writePos += n
		samples = samples[n:]

		if ba.writePos < ba.blockSize {
			continue
		}

		block := make([]float32, ba.blockSize)
		copy(block, ba.buffer)
		if err := emit(block); err != nil {
			return err
		}

		if ba.hopSize < ba.blockSize {
			copy(ba.buffer, ba.buffer[ba.hopSize:])
			ba.writePos = ba.blockSize - ba.hopSize
		} else {
			ba.writePos = 0
		}
	}
	return nil
}

// Flush emits the pending partial block zero-padded to full size.
// Nothing is emitted when no new samples are pending.
func (ba *BlockAssembler) Flush(emit func(block []float32) error) error {
	pending := ba.writePos
	if ba.hopSize < ba.blockSize {
		pending -= ba.blockSize - ba.hopSize
	}
	if pending <= 0 {
		ba.Reset()
		return nil
	}

	block := make([]float32, ba.blockSize)
	copy(block, ba.buffer[:ba.writePos])
	ba.Reset()
	return emit(block)
}

// Buffered returns the number of samples waiting for the next block
func (ba *BlockAssembler) Buffered() int {
	return ba.writePos
}

// Reset discards any buffered samples
func (ba *BlockAssembler) Reset() {
	ba.writePos = 0
	clear(ba.buffer)
}
