package utilities

func init() {
	Register(Utility{
		Key:   "PGE",
		Name:  "Pacific Gas and Electric Company",
		State: "CA",
		ThermsProfileAdjustments: map[string]float64{
			"annual": 0.9427,
			"summer": 0.8293,
			"winter": 1.0558,
		},
	})
	Register(Utility{
		Key:   "SCE",
		Name:  "Southern California Edison",
		State: "CA",
		ThermsProfileAdjustments: map[string]float64{
			"annual": 0.8948,
			"summer": 0.8282,
			"winter": 0.9611,
		},
	})
	Register(Utility{
		Key:   "SDGE",
		Name:  "San Diego Gas & Electric",
		State: "CA",
		ThermsProfileAdjustments: map[string]float64{
			"annual": 0.9435,
			"summer": 0.8394,
			"winter": 1.0469,
		},
	})
}
