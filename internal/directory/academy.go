// Package directory holds the academy register: decoding the exported
// table, ranking search results and gating access behind a shared secret.
package directory

type (
	// Academy is one registered academy with every course, insurance
	// policy and inspection found for it in the export.
	Academy struct {
		ID          string       `json:"id"`
		Name        string       `json:"name"`
		Category    string       `json:"category"`
		Field       string       `json:"field"`
		Address     string       `json:"address"`
		Zip         string       `json:"zip"`
		RegDate     string       `json:"regDate"`
		Status      string       `json:"status"`
		StatusDate  string       `json:"statusDate"`
		MultiUse    string       `json:"isMultiUse"`
		Boarding    string       `json:"isBoarding"`
		Disclosure  string       `json:"disclosure"`
		Ownership   string       `json:"ownership"`
		Founder     Founder      `json:"founder"`
		Facilities  Facilities   `json:"facilities"`
		Courses     []Course     `json:"courses"`
		Insurances  []Insurance  `json:"insurances"`
		Inspections []Inspection `json:"inspections"`
	}

	Founder struct {
		Name    string `json:"name"`
		Birth   string `json:"birth"`
		Address string `json:"address"`
		Phone   string `json:"phone"`
		Mobile  string `json:"mobile"`
	}

	Facilities struct {
		BuildingArea      string `json:"buildingArea"`
		TotalArea         string `json:"totalArea"`
		DedicatedArea     string `json:"dedicatedArea"`
		Floors            string `json:"floors"`
		BuiltDate         string `json:"builtDate"`
		CapacityTemporary string `json:"capacityTemporary"`
		CapacityTotal     string `json:"capacityTotal"`
	}

	Course struct {
		Process    string `json:"process"`
		Subject    string `json:"subject"`
		Track      string `json:"track"`
		Quota      string `json:"quota"`
		Period     string `json:"period"`
		TotalFee   string `json:"totalFee"`
		FeePerHour string `json:"feePerHour"`
	}

	Insurance struct {
		Company                 string `json:"company"`
		Contractor              string `json:"contractor"`
		PolicyNumber            string `json:"policyNumber"`
		TeachersCount           string `json:"teachersCount"`
		CompensationPerAccident string `json:"compensationPerAccident"`
		MedicalPerPerson        string `json:"medicalPerPerson"`
		CompensationPerPerson   string `json:"compensationPerPerson"`
		StartDate               string `json:"startDate"`
		EndDate                 string `json:"endDate"`
	}

	Inspection struct {
		Date       string `json:"date"`
		Violation  string `json:"violation"`
		Punishment string `json:"punishment"`
	}
)
