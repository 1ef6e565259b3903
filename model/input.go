/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/humaidq/glycowatch/db"
)

const maxAddressLength = 500

var (
	namePattern    = regexp.MustCompile(`^[A-Za-z\s]+$`)
	contactPattern = regexp.MustCompile(`^\d{10}$`)
	allowedSexes   = map[string]bool{"Male": true, "Female": true, "Other": true}
)

// Number accepts a JSON number or a numeric string.
type Number float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		data = []byte(strings.TrimSpace(s))
	}

	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", data)
	}

	*n = Number(v)

	return nil
}

// Input is the body of a prediction request.
type Input struct {
	Name                     string `json:"name"`
	Age                      Number `json:"age"`
	Sex                      string `json:"sex"`
	Contact                  string `json:"contact"`
	Address                  string `json:"address"`
	Pregnancies              Number `json:"pregnancies"`
	Glucose                  Number `json:"glucose"`
	BloodPressure            Number `json:"bloodPressure"`
	SkinThickness            Number `json:"skinThickness"`
	Insulin                  Number `json:"insulin"`
	BMI                      Number `json:"bmi"`
	DiabetesPedigreeFunction Number `json:"diabetesPedigreeFunction"`
}

// Patient is the validated identity part of an Input.
type Patient struct {
	Name    string
	Sex     string
	Contact string
	Address string
}

type bound struct {
	param    db.Parameter
	value    Number
	min, max float64
	// exclusiveMin rejects a value equal to min.
	exclusiveMin bool
	message      string
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Validate checks every field and returns the patient identity and the
// measurements to classify.
func (in Input) Validate() (Patient, db.Measurements, error) {
	var m db.Measurements

	name := strings.TrimSpace(in.Name)
	if !namePattern.MatchString(name) || len(name) < 2 || len(name) > 100 {
		return Patient{}, m, invalid("name", "Invalid name. Only letters and spaces allowed (2-100 characters).")
	}

	age := float64(in.Age)
	if age != float64(int(age)) || age < 1 || age > 120 {
		return Patient{}, m, invalid("age", "Invalid age. Must be between 1 and 120.")
	}

	contact := strings.TrimSpace(in.Contact)
	if !contactPattern.MatchString(contact) {
		return Patient{}, m, invalid("contact", "Invalid contact number. Must be exactly 10 digits.")
	}

	if !allowedSexes[in.Sex] {
		return Patient{}, m, invalid("sex", "Invalid sex value.")
	}

	address := strings.TrimSpace(in.Address)
	if address == "" {
		address = "N/A"
	}

	if len(address) > maxAddressLength {
		address = address[:maxAddressLength]
	}

	bounds := []bound{
		{db.ParamPregnancies, in.Pregnancies, 0, 20, false, "Pregnancies must be 0-20"},
		{db.ParamGlucose, in.Glucose, 0, 300, true, "Glucose must be 1-300 mg/dL"},
		{db.ParamBloodPressure, in.BloodPressure, 0, 200, true, "Blood pressure must be 1-200 mmHg"},
		{db.ParamSkinThickness, in.SkinThickness, 0, 100, false, "Skin thickness must be 0-100 mm"},
		{db.ParamInsulin, in.Insulin, 0, 900, false, "Insulin must be 0-900 μU/mL"},
		{db.ParamBMI, in.BMI, 10, 70, false, "BMI must be 10-70"},
		{db.ParamDiabetesPedigree, in.DiabetesPedigreeFunction, 0, 3, false, "Diabetes Pedigree Function must be 0-3"},
	}

	for _, b := range bounds {
		v := float64(b.value)
		if v < b.min || v > b.max || (b.exclusiveMin && v == b.min) {
			return Patient{}, db.Measurements{}, invalid(string(b.param), "Invalid medical value: "+b.message)
		}

		m.Set(b.param, v)
	}

	m.Set(db.ParamAge, age)
	m.Derive()

	return Patient{Name: name, Sex: in.Sex, Contact: contact, Address: address}, m, nil
}
