// Package retriever answers similarity queries against the active index build.
//
// A query for k results asks the store for 3k candidates ranked by cosine
// similarity and keeps the first k with distinct trimmed content. Overlap
// regions of neighbouring chunks and identical files indexed twice therefore
// never show up as separate results. Answers are cached per build, so a
// rebuild implicitly invalidates them.
//
// # Basic Usage
//
//	r := retriever.New(store, emb)
//	results, err := r.Query(ctx, "where is the config parsed", 5)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(retriever.Format(results))
package retriever
