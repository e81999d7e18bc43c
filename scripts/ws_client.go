// Package main runs a demo WebSocket client for instance events: it uploads
// an instance, subscribes to its events and triggers a solve.
//
//	go run ./scripts <instance-dir-or-file>
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"slotting/internal/loader"
	"slotting/internal/model"
)

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: ws_client <instance>")
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	inst, err := loader.Load(os.Args[1])
	if err != nil {
		log.Fatal(err)
	}
	body, _ := json.Marshal(model.CreateInstanceRequest{Name: os.Args[1], Instance: inst.Doc()})
	resp, err := http.Post(base+"/v1/instances", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var created model.InstanceOut
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil || created.ID == "" {
		log.Fatalf("create instance: status %d: %v", resp.StatusCode, err)
	}
	log.Printf("Instance ID: %s", created.ID)

	// Connect WS
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/instances/" + created.ID + "/events/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
		}
	}()

	// Trigger an instance event via solve
	time.Sleep(500 * time.Millisecond)
	solveResp, err := http.Post(fmt.Sprintf("%s/v1/instances/%s/solve", base, created.ID), "application/json", bytes.NewReader([]byte("{}")))
	if err != nil {
		log.Fatal(err)
	}
	_ = solveResp.Body.Close()

	// Wait briefly to receive a few messages
	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
