package b2

// partAssembler carves the buffered chunks of an upload into parts of exactly
// the configured size. Chunks are sliced, never copied.
type partAssembler struct {
	size       uint64
	pending    [][]byte
	pendingLen uint64
}

func (p *partAssembler) add(chunk []byte) {
	p.pending = append(p.pending, chunk)
	p.pendingLen += uint64(len(chunk))
}

// take removes one full part from the front of the pending chunks. ok is
// false while less than one part is buffered.
func (p *partAssembler) take() (chunks [][]byte, length uint64, ok bool) {
	if p.pendingLen < p.size {
		return nil, 0, false
	}

	remaining := p.size
	for remaining > 0 {
		chunk := p.pending[0]
		if uint64(len(chunk)) <= remaining {
			chunks = append(chunks, chunk)
			remaining -= uint64(len(chunk))
			p.pending = p.pending[1:]
			continue
		}

		chunks = append(chunks, chunk[:remaining])
		p.pending[0] = chunk[remaining:]
		remaining = 0
	}

	p.pendingLen -= p.size
	return chunks, p.size, true
}

// rest returns whatever is left over for the final part.
func (p *partAssembler) rest() ([][]byte, uint64) {
	chunks, length := p.pending, p.pendingLen
	p.pending, p.pendingLen = nil, 0
	return chunks, length
}
