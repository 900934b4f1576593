package model

// Column names shared by single-record input, batch uploads, and export.
const (
	ColGeography       = "Geography"
	ColGender          = "Gender"
	ColAge             = "Age"
	ColCreditScore     = "CreditScore"
	ColBalance         = "Balance"
	ColEstimatedSalary = "EstimatedSalary"
	ColTenure          = "Tenure"
	ColNumOfProducts   = "NumOfProducts"
	ColHasCrCard       = "HasCrCard"
	ColIsActiveMember  = "IsActiveMember"

	ColChurnPrediction  = "Churn_Prediction"
	ColChurnProbability = "Churn_Probability"
)

// RequiredColumns is the feature schema the classifier expects, in the
// order fields are validated and missing columns are reported.
var RequiredColumns = []string{
	ColGeography,
	ColGender,
	ColAge,
	ColCreditScore,
	ColBalance,
	ColEstimatedSalary,
	ColTenure,
	ColNumOfProducts,
	ColHasCrCard,
	ColIsActiveMember,
}

// CustomerRecord is one customer's validated feature vector.
type CustomerRecord struct {
	Geography       string  `json:"geography"`
	Gender          string  `json:"gender"`
	Age             int     `json:"age"`
	CreditScore     int     `json:"credit_score"`
	Balance         float64 `json:"balance"`
	EstimatedSalary float64 `json:"estimated_salary"`
	Tenure          int     `json:"tenure"`
	NumOfProducts   int     `json:"num_of_products"`
	HasCreditCard   bool    `json:"has_credit_card"`
	IsActiveMember  bool    `json:"is_active_member"`
}

// Table returns the record as a one-row table in RequiredColumns order.
// Booleans encode as 1/0, matching the numeric form used in uploads.
func (c CustomerRecord) Table() *Table {
	return &Table{
		Columns: append([]string(nil), RequiredColumns...),
		Rows: [][]string{{
			c.Geography,
			c.Gender,
			formatInt(c.Age),
			formatInt(c.CreditScore),
			formatFloat(c.Balance),
			formatFloat(c.EstimatedSalary),
			formatInt(c.Tenure),
			formatInt(c.NumOfProducts),
			formatBool(c.HasCreditCard),
			formatBool(c.IsActiveMember),
		}},
	}
}
