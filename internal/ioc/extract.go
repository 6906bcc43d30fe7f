package ioc

// ExtractURLScan walks urlscan.io search results and collects indicators
// from each record's nested page and task objects.
func ExtractURLScan(results []any) *Set {
	set := NewSet()

	for _, item := range results {
		rec, ok := item.(map[string]any)
		if !ok {
			continue
		}

		scanID := "N/A"
		if task, isMap := rec["task"].(map[string]any); isMap {
			if id := stringOf(task["uuid"]); id != "" {
				scanID = id
			}
		}

		if page, isMap := rec["page"].(map[string]any); isMap {
			set.add("domains", stringOf(page["domain"]), scanID)
			set.add("ips", stringOf(page["ip"]), scanID)
			set.add("urls", stringOf(page["url"]), scanID)
			set.add("page_titles", stringOf(page["title"]), scanID)
			set.add("server_details", stringOf(page["server"]), scanID)
		}

		if task, isMap := rec["task"].(map[string]any); isMap {
			set.add("scan_ids", stringOf(task["uuid"]), scanID)
			set.add("scan_dates", stringOf(task["time"]), scanID)
		}
	}

	return set
}

// ExtractScandata walks Silent Push scan-data records, which spread
// indicators over a much wider surface than urlscan results: flat fields,
// nested whois and webscan objects, contact record lists and DNS summaries.
func ExtractScandata(results []any) *Set {
	set := NewSet()

	for _, item := range results {
		rec, ok := item.(map[string]any)
		if !ok {
			continue
		}

		scanID := "N/A"
		if id := stringOf(rec["request_id"]); id != "" {
			scanID = id
		} else if id := stringOf(rec["uuid"]); id != "" {
			scanID = id
		}
		if scanID != "N/A" {
			set.add("scan_ids", scanID, scanID)
		}

		if d := stringOf(rec["domain"]); d != "" {
			set.add("domains", d, scanID)
		} else {
			set.add("domains", stringOf(rec["host"]), scanID)
		}

		if whois, isMap := rec["whois"].(map[string]any); isMap {
			set.add("registrars", stringOf(whois["registrar"]), scanID)
			for _, ns := range stringsOf(whois["nameservers"]) {
				set.add("nameservers", ns, scanID)
			}
			for _, email := range stringsOf(whois["emails"]) {
				set.add("emails", email, scanID)
			}
		}

		if contacts, isList := rec["records"].([]any); isList {
			for _, c := range contacts {
				contact, isMap := c.(map[string]any)
				if !isMap {
					continue
				}
				set.add("organizations", stringOf(contact["name"]), scanID)
				set.add("emails", stringOf(contact["email"]), scanID)
				set.add("organizations", stringOf(contact["organization"]), scanID)
			}
		}

		if webscan, isMap := rec["webscan"].(map[string]any); isMap {
			set.add("page_titles", stringOf(webscan["title"]), scanID)
			set.add("server_details", stringOf(webscan["server"]), scanID)
			set.add("urls", stringOf(webscan["url"]), scanID)
		}

		set.add("ips", stringOf(rec["ip"]), scanID)
		for _, ip := range stringsOf(rec["ips"]) {
			set.add("ips", ip, scanID)
		}

		if dns, isMap := rec["dns"].(map[string]any); isMap {
			for _, ip := range stringsOf(dns["a"]) {
				set.add("ips", ip, scanID)
			}
			for _, ns := range stringsOf(dns["ns"]) {
				set.add("nameservers", ns, scanID)
			}
		}

		set.add("urls", stringOf(rec["url"]), scanID)
	}

	return set
}
