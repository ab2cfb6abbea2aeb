package websocket

// partialFrame is the parse state carried between chunks.
// Either rest holds bytes too short to parse a header from,
// or the header is parsed and payload is filled up to filled.
type partialFrame struct {
	rest []byte

	h       header
	payload []byte
	filled  int
}

// partialFrameStore holds at most one partialFrame.
// It is owned by a single Decoder.
type partialFrameStore struct {
	pf    partialFrame
	isSet bool
}

func (s *partialFrameStore) set(pf partialFrame) error {
	if s.isSet {
		return ErrPartialFrameSet
	}
	s.pf = pf
	s.isSet = true
	return nil
}

// get returns the stored partialFrame and clears the store.
func (s *partialFrameStore) get() (partialFrame, error) {
	if !s.isSet {
		return partialFrame{}, ErrPartialFrameNotSet
	}
	pf := s.pf
	s.pf = partialFrame{}
	s.isSet = false
	return pf, nil
}
