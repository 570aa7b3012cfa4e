package lua

import (
	"bufio"
	"fmt"
	"os"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// DefaultCompileCacheSize bounds the compiled scripts a Loader keeps.
const DefaultCompileCacheSize = 64

// compileCache holds compiled main chunks keyed by path, mtime and size so
// that every instance of a package shares one FunctionProto.
type compileCache struct {
	cache  *lru.LRU[string, *lua.FunctionProto]
	hits   atomic.Int64
	misses atomic.Int64
}

func newCompileCache(size int) *compileCache {
	if size < 1 {
		size = DefaultCompileCacheSize
	}
	return &compileCache{
		cache: lru.NewLRU[string, *lua.FunctionProto](size, nil, 0),
	}
}

func (c *compileCache) compile(path string) (*lua.FunctionProto, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s:%d:%d", path, info.ModTime().UnixNano(), info.Size())

	if proto, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return proto, nil
	}
	c.misses.Add(1)

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	chunk, err := parse.Parse(bufio.NewReader(f), path)
	if err != nil {
		return nil, err
	}
	proto, err := lua.Compile(chunk, path)
	if err != nil {
		return nil, err
	}

	c.cache.Add(key, proto)
	return proto, nil
}
