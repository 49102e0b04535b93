package sigengine

import (
	"context"
	"log"
	"net/http"
	"time"

	"mag-systemv1/internal/gateway"
)

// startGateway launches the websocket hub, its Redis pubsub routers and
// the HTTP API on cfg.GatewayAddr.
func (svc *Service) startGateway(ctx context.Context) {
	hub := gateway.NewHub(svc.redisWriter.Client(), svc.symbols)

	go hub.Run(ctx)
	go hub.StartMetricsBroadcast(ctx, time.Now())

	mux := http.NewServeMux()
	gateway.RegisterRoutes(mux, hub, svc.redisWriter.Client(), ctx, svc.symbols, time.Now())

	go func() {
		log.Printf("[sigengine] gateway HTTP/WS server on %s", svc.cfg.GatewayAddr)
		if err := http.ListenAndServe(svc.cfg.GatewayAddr, mux); err != nil {
			log.Printf("[sigengine] gateway server error: %v", err)
		}
	}()
}

// startProfileSubscriber listens for active-profile changes published
// by the gateway and applies them to the advisor. Engine tier presets
// stay fixed for the process lifetime; only alert wording and filtering
// switch at runtime.
func (svc *Service) startProfileSubscriber(ctx context.Context) {
	go func() {
		pubsub := svc.redisReader.SubscribeChannel(ctx, "config:profile")
		if pubsub == nil {
			log.Println("[sigengine] WARNING: could not subscribe to config:profile")
			return
		}
		defer pubsub.Close()
		log.Println("[sigengine] subscribed to config:profile for personality switches")

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				name := msg.Payload
				if _, known := svc.personalities[name]; !known {
					log.Printf("[sigengine] unknown personality %q, treating as middle", name)
				}
				svc.advisor.SetProfile(name)
				log.Printf("[sigengine] active personality switched to %q", name)
			}
		}
	}()
}
