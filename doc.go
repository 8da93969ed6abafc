// Package menudex embeds the menu retrieval engine in a Go program.
//
// An Engine owns one vector index, one embedding chain and one catalog
// source for the lifetime of the process. New performs the first build;
// Reload rebuilds from the source and swaps the index atomically while
// Retrieve calls keep being served.
//
//	engine, err := menudex.New(ctx,
//	    menudex.WithOpenAI(os.Getenv("OPENAI_API_KEY"), "", "text-embedding-3-small", 1536),
//	    menudex.WithMenuFile("menu_structured.json"),
//	)
//	if err != nil {
//	    return err
//	}
//	defer engine.Close()
//
//	out, err := engine.Retrieve(ctx, menudex.NewQuery("spicy paneer under 250").TopK(3))
//	fmt.Println(out.Reply)
//
// Retrieve only returns an error for an invalid query. Provider and index
// failures come back as an empty Outcome with a Reason.
package menudex
