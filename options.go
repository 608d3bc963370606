package relay

// Options holds command line options.
type Options struct {
	ConfigURL string `short:"c" long:"config" description:"configuration file"`
	URL       string `short:"u" long:"url" description:"upstream mcp url"`
	Addr      string `short:"a" long:"addr" description:"listen address"`
}
