package main

// Translation records how many operations survived origin-to-system id
// translation. Filtered = Original - Valid.
type Translation struct {
	Original int
	Valid    int
}

func (t Translation) Filtered() int {
	return t.Original - t.Valid
}

// Translator converts dataset-space origin ids into backend system ids.
// Operations referencing an id the backend never observed during load are
// dropped from the working set and counted, never passed through.
type Translator struct {
	exec Executor
}

func NewTranslator(exec Executor) *Translator {
	return &Translator{exec: exec}
}

func (t *Translator) IDs(origins []int64) ([]SystemID, Translation) {
	ids := make([]SystemID, 0, len(origins))
	for _, origin := range origins {
		if id, ok := t.exec.SystemID(origin); ok {
			ids = append(ids, id)
		}
	}
	return ids, Translation{Original: len(origins), Valid: len(ids)}
}

// Pairs drops an edge when either endpoint is unknown.
func (t *Translator) Pairs(origins []OriginPair) ([]EdgePair, Translation) {
	pairs := make([]EdgePair, 0, len(origins))
	for _, origin := range origins {
		src, srcOk := t.exec.SystemID(origin.Src)
		dst, dstOk := t.exec.SystemID(origin.Dst)
		if srcOk && dstOk {
			pairs = append(pairs, EdgePair{Src: src, Dst: dst})
		}
	}
	return pairs, Translation{Original: len(origins), Valid: len(pairs)}
}

func (t *Translator) VertexUpdates(origins []OriginVertexUpdate) ([]VertexUpdate, Translation) {
	updates := make([]VertexUpdate, 0, len(origins))
	for _, origin := range origins {
		if id, ok := t.exec.SystemID(origin.ID); ok {
			updates = append(updates, VertexUpdate{ID: id, Properties: origin.Properties})
		}
	}
	return updates, Translation{Original: len(origins), Valid: len(updates)}
}

func (t *Translator) EdgeUpdates(origins []OriginEdgeUpdate) ([]EdgeUpdate, Translation) {
	updates := make([]EdgeUpdate, 0, len(origins))
	for _, origin := range origins {
		src, srcOk := t.exec.SystemID(origin.Src)
		dst, dstOk := t.exec.SystemID(origin.Dst)
		if srcOk && dstOk {
			updates = append(updates, EdgeUpdate{Src: src, Dst: dst, Properties: origin.Properties})
		}
	}
	return updates, Translation{Original: len(origins), Valid: len(updates)}
}
