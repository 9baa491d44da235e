package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/jacksonlee411/orgchart/internal/routing"
	"github.com/jacksonlee411/orgchart/modules/orgchart/services"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type HandlerOptions struct {
	Service       services.OrgChartService
	Logger        logrus.FieldLogger
	AllowlistPath string
}

func NewHandlerWithOptions(opts HandlerOptions) (http.Handler, error) {
	if opts.Service.Store() == nil {
		return nil, errors.New("server: missing orgchart service")
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	allowlistPath := opts.AllowlistPath
	if allowlistPath == "" {
		allowlistPath = os.Getenv("ALLOWLIST_PATH")
	}
	if allowlistPath == "" {
		p, err := defaultAllowlistPath()
		if err != nil {
			return nil, err
		}
		allowlistPath = p
	}

	a, err := routing.LoadAllowlist(allowlistPath)
	if err != nil {
		return nil, err
	}

	classifier, err := routing.NewClassifier(a, "server")
	if err != nil {
		return nil, err
	}

	router := routing.NewRouter(classifier, log)
	health := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		routing.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Handle(routing.RouteClassOps, http.MethodGet, "/health", health)
	router.Handle(routing.RouteClassOps, http.MethodGet, "/healthz", health)
	router.Handle(routing.RouteClassOps, http.MethodGet, "/metrics", promhttp.Handler())

	api := &orgChartAPI{svc: opts.Service, log: log}
	api.register(router)

	if unlisted := router.Unlisted(); len(unlisted) > 0 {
		return nil, errors.New("server: routes missing from allowlist: " + strings.Join(unlisted, ", "))
	}
	return router, nil
}

func defaultAllowlistPath() (string, error) {
	path := "config/routing/allowlist.yaml"
	for range 8 {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: allowlist not found")
}
