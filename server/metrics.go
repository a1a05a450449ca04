// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"github.com/bvk/pricebot/pricefeed"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	fetchTotal    *prometheus.CounterVec
	fetchDuration prometheus.Summary
	publishTotal  *prometheus.CounterVec
	commandTotal  *prometheus.CounterVec
	lastSuccessTS prometheus.Gauge
	price         *prometheus.GaugeVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pricebot",
			Name:      "fetch_total",
			Help:      "Number of price fetches by result",
		}, []string{"result"}),
		fetchDuration: prometheus.NewSummary(prometheus.SummaryOpts{
			Namespace: "pricebot",
			Name:      "fetch_duration_seconds",
			Help:      "Time spent fetching prices",
		}),
		publishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pricebot",
			Name:      "publish_total",
			Help:      "Number of channel messages by kind and result",
		}, []string{"kind", "result"}),
		commandTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pricebot",
			Name:      "command_total",
			Help:      "Number of user commands handled",
		}, []string{"command"}),
		lastSuccessTS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pricebot",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix timestamp of the last successful price update",
		}),
		price: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pricebot",
			Name:      "price",
			Help:      "Last fetched price of an asset",
		}, []string{"asset", "currency"}),
	}
	if reg != nil {
		collectors := []prometheus.Collector{
			m.fetchTotal, m.fetchDuration, m.publishTotal,
			m.commandTotal, m.lastSuccessTS, m.price,
		}
		for _, c := range collectors {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *metrics) observePrices(snaps *pricefeed.Snapshots) {
	for _, s := range snaps.Items {
		v, _ := s.Price.Float64()
		m.price.WithLabelValues(s.Asset.ID, snaps.Currency).Set(v)
	}
}
