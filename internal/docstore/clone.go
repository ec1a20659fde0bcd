package docstore

// Clone делает глубокую копию документа, чтобы хранилище и вызывающий код
// не разделяли вложенные map и срезы.
func Clone(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case Document:
		return map[string]any(Clone(val))
	case map[string]any:
		return map[string]any(Clone(val))
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	default:
		return val
	}
}
