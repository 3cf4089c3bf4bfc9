package block

// maybeCompactBuffer trims the already-committed prefix of the buffer once
// it exceeds MaxBufferBytes, rebasing every line span and block cursor that
// referred to the discarded prefix. It is a no-op when no cap is configured,
// the buffer is still under the cap, or the stream is in single-block
// footnote mode (where the whole buffer is the live pending block and there
// is nothing safe to discard).
func (s *Stream) maybeCompactBuffer() {
	max := s.opts.MaxBufferBytes
	if max <= 0 || len(s.buffer) <= max {
		return
	}
	if s.opts.Footnotes == SingleBlock && s.footnotesDetected {
		return
	}
	if s.currentBlockStartLine >= len(s.lines) {
		return
	}

	keepFrom := s.lines[s.currentBlockStartLine].start
	if keepFrom <= 0 {
		return
	}

	s.buffer = s.buffer[keepFrom:]

	keptLines := s.lines[s.currentBlockStartLine:]
	rebased := make([]line, len(keptLines))
	for i, l := range keptLines {
		l.start -= keepFrom
		l.end -= keepFrom
		rebased[i] = l
	}
	s.processedLine -= s.currentBlockStartLine
	s.lines = rebased
	s.currentBlockStartLine = 0
	s.pendingDisplayCache = ""
	s.hasPendingDisplayCache = false

	if s.logger != nil {
		s.logger.Debug("compacted buffer", "kept_from", keepFrom, "buffer_len", len(s.buffer))
	}
}
