package audio

import "encoding/base64"

// Chunk is one piece of encoded audio. Index is the emission order within a
// single synthesized response.
type Chunk struct {
	Index int
	Data  []byte
}

func (c Chunk) Base64() string {
	return base64.StdEncoding.EncodeToString(c.Data)
}

// Split cuts data into ordered chunks of at most size bytes. A size of zero or
// less returns the whole payload as a single chunk.
func Split(data []byte, size int) []Chunk {
	if len(data) == 0 {
		return nil
	}
	if size <= 0 || size >= len(data) {
		return []Chunk{{Index: 0, Data: data}}
	}

	chunks := make([]Chunk, 0, (len(data)+size-1)/size)
	for start := 0; start < len(data); start += size {
		end := min(start+size, len(data))
		chunks = append(chunks, Chunk{Index: len(chunks), Data: data[start:end]})
	}
	return chunks
}

// Reindex renumbers chunks in slice order, dropping empty ones.
func Reindex(chunks []Chunk) []Chunk {
	reindexed := make([]Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk.Data) == 0 {
			continue
		}
		chunk.Index = len(reindexed)
		reindexed = append(reindexed, chunk)
	}
	return reindexed
}
