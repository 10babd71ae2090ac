package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ConversionSpec is a per-SKU multiplier entry of the catalog file.
// Values are kept as strings so they can be parsed as exact decimals.
type ConversionSpec struct {
	SKU    string `mapstructure:"sku"`
	Carton string `mapstructure:"carton"`
	Pallet string `mapstructure:"pallet"`
}

// GroupSpec names a set of SKUs that gets a subtotal row
type GroupSpec struct {
	Name     string   `mapstructure:"name"`
	SKUs     []string `mapstructure:"skus"`
	Prefixes []string `mapstructure:"prefixes"`
}

// Catalog holds the deployment specific tables that are not part of the environment:
//
//	conversions:
//	  - sku: "80522"
//	    carton: 12
//	    pallet: 480
//	groups:
//	  - name: Kaffee
//	    prefixes: ["805"]
type Catalog struct {
	Conversions []ConversionSpec `mapstructure:"conversions"`
	Groups      []GroupSpec      `mapstructure:"groups"`
}

// LoadCatalog reads the catalog file with its own viper instance so the keys
// never mix with environment settings. An empty path yields an empty catalog.
func LoadCatalog(path string) (*Catalog, error) {
	catalog := &Catalog{}
	if strings.TrimSpace(path) == "" {
		return catalog, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	if err := v.Unmarshal(catalog); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}

	for i, c := range catalog.Conversions {
		if strings.TrimSpace(c.SKU) == "" {
			return nil, fmt.Errorf("catalog %s: conversion %d has no sku", path, i+1)
		}
	}
	for i, g := range catalog.Groups {
		if strings.TrimSpace(g.Name) == "" {
			return nil, fmt.Errorf("catalog %s: group %d has no name", path, i+1)
		}
	}

	return catalog, nil
}
