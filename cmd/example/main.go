// Command example runs a minimal server over TCP with two handlers, the
// way gosimplehttp is meant to be embedded.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/megakuul/gosimplehttp"
)

func main() {
	cfg, err := gosimplehttp.ConfigFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	srv, err := gosimplehttp.NewTCP4("127.0.0.1", 8080, gosimplehttp.WithConfig(cfg))
	if err != nil {
		fmt.Fprintln(os.Stderr, "bind server:", err)
		os.Exit(1)
	}

	srv.Get("/ping", func(req *gosimplehttp.Request, resp *gosimplehttp.Response, body *gosimplehttp.BodyReader) error {
		resp.SetContentType("text/plain")
		resp.SetBody([]byte("pong"))
		return nil
	})

	srv.Post("/echo", func(req *gosimplehttp.Request, resp *gosimplehttp.Response, body *gosimplehttp.BodyReader) error {
		n := req.ContentLength()
		data, err := body.Read(n)
		if err != nil {
			return err
		}
		resp.SetContentType(req.Header("Content-Type"))
		resp.SetBody(data)
		return nil
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		srv.Kill()
	}()

	fmt.Println("listening on 127.0.0.1:8080")
	if err := srv.Serve(); err != nil {
		fmt.Fprintln(os.Stderr, "serve:", err)
		os.Exit(1)
	}
}
