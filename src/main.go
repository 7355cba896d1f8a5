package main

import (
	"fmt"
	"os"
	"sync"

	"oolc/src/backend/emit"
	"oolc/src/backend/x86"
	"oolc/src/frontend"
	"oolc/src/ir/llvm"
	"oolc/src/util"
)

// run reads and lowers a single source file. Behaviour is controlled
// entirely by the parsed util.Options.
func run(opt util.Options) error {
	src, err := util.ReadSource(opt)
	if err != nil {
		return fmt.Errorf("could not read source code: %s", err)
	}

	root, err := frontend.Read(opt.Src, src)
	if err != nil {
		return fmt.Errorf("parse error: %s", err)
	}

	if opt.TokenStream {
		root.Print(0)
		return nil
	}

	if opt.LLVM {
		em := llvm.New(opt.Src)
		c := x86.NewCtx(em)
		if err := x86.Generate(c, root, opt); err != nil {
			return fmt.Errorf("code generation error: %s", err)
		}
		if err := em.Finish(opt); err != nil {
			return fmt.Errorf("error reported by LLVM: %s", err)
		}
		return nil
	}

	em := emit.New(util.NewWriter(), opt.Debug)
	c := x86.NewCtx(em)
	if err := x86.Generate(c, root, opt); err != nil {
		return fmt.Errorf("code generation error: %s", err)
	}
	em.Close()
	return nil
}

func main() {
	opt, err := util.ParseArgs()
	if err != nil {
		fmt.Printf("Command line argument error: %s\n", err)
		os.Exit(1)
	}

	wg := sync.WaitGroup{}
	if len(opt.Out) > 0 {
		f, err := os.OpenFile(opt.Out, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		defer f.Close()
		util.ListenWrite(opt, f, &wg)
	} else {
		util.ListenWrite(opt, nil, &wg)
	}
	defer util.Close()

	go util.ListenLabel()
	defer util.CloseLabel()

	if err := run(opt); err != nil {
		fmt.Printf("Error: %s\n", err)
		wg.Wait()
		os.Exit(1)
	}

	wg.Wait()
}
