// Package chunker bounds fragment size for embedding.
//
// A fragment longer than the chunk size is split recursively: the text is cut
// on the first separator it contains (paragraph break, then line break, then
// space), pieces that are still too long are cut again with the next
// separator, and as a last resort the text is cut between characters. Small
// neighbouring pieces are merged back up to the chunk size and each chunk
// repeats up to Overlap characters from the end of the previous one.
//
//	c, err := chunker.New(chunker.WithChunkSize(1000), chunker.WithOverlap(200))
//	if err != nil {
//	    return err
//	}
//	for _, part := range c.Split(fragment) {
//	    fmt.Println(*part.ChunkIndex, len(part.Content))
//	}
//
// Lengths are measured in characters (runes), not bytes.
package chunker
