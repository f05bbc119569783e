package scenario

// PaymentScenario returns the online payment scenario.
// Simulates: gateway → payment-service → fraud-detection/payment-processor → notification queue
func PaymentScenario() *Scenario {
	return &Scenario{
		Name:        "payment",
		Description: "Online payment with fraud scoring, card charge and a queued confirmation",
		RootSpan: SpanTemplate{
			Name:     "POST /api/v1/checkout",
			Service:  "payment-gateway",
			Kind:     SpanKindServer,
			Duration: Duration(180_000_000), // 180ms
			Annotations: map[string]string{
				"ServerReceived": "",
				"StatusCode":     "200",
			},
			Children: []SpanTemplate{
				{
					Name:     "ProcessPayment",
					Service:  "payment-service",
					Kind:     SpanKindInternal,
					Duration: Duration(150_000_000), // 150ms
					Annotations: map[string]string{
						"payment.amount":   "99.99",
						"payment.currency": "USD",
					},
					PostProcess: []TaskTemplate{
						{Name: "cart.checksum", Duration: Duration(2_000_000), Result: "a41f09"},
					},
					Children: []SpanTemplate{
						{
							Name:     "FraudDetection/AnalyzeTransaction",
							Service:  "fraud-detection",
							Kind:     SpanKindClient,
							Duration: Duration(45_000_000), // 45ms
							Annotations: map[string]string{
								"UserAgent": "grpc-go",
							},
							Children: []SpanTemplate{
								{
									Name:     "MLService/Predict",
									Service:  "ml-service",
									Kind:     SpanKindClient,
									Duration: Duration(25_000_000), // 25ms
									Annotations: map[string]string{
										"ml.model": "fraud-detector-v2",
									},
									PostProcess: []TaskTemplate{
										{Name: "ml.score", Duration: Duration(5_000_000), Result: "0.12"},
									},
								},
							},
						},
						{
							Name:        "ChargeCard",
							Service:     "payment-processor",
							Kind:        SpanKindInternal,
							Duration:    Duration(80_000_000), // 80ms
							ErrorRate:   0.05,                 // 5% error rate
							ErrorStatus: "payment declined",
							Children: []SpanTemplate{
								{
									Name:     "POST /v2/charges",
									Service:  "payment-processor",
									Kind:     SpanKindClient,
									Duration: Duration(65_000_000), // 65ms
									Annotations: map[string]string{
										"StatusCode": "200",
									},
								},
							},
						},
					},
				},
				{
					Name:     "publish notifications",
					Service:  "notification-service",
					Kind:     SpanKindProducer,
					Duration: Duration(15_000_000), // 15ms
					Annotations: map[string]string{
						"queue": "notifications",
					},
				},
			},
		},
	}
}

// HealthCheckScenario returns a single-span scenario.
// Useful for verifying that the configured sink receives traces.
func HealthCheckScenario() *Scenario {
	return &Scenario{
		Name:        "health-check",
		Description: "Single HTTP health check span for verifying the sink",
		RootSpan: SpanTemplate{
			Name:     "GET /health",
			Service:  "health-service",
			Kind:     SpanKindServer,
			Duration: Duration(5_000_000), // 5ms
			Annotations: map[string]string{
				"StatusCode": "200",
			},
		},
	}
}
