package intent

import "fmt"

// Bump when the instruction or the parsing logic changes: old cache entries
// become unreachable without being deleted.
const extractionLogicVersion = "v3"

const searchIntentInstruction = `You are the search intent extraction engine for MobileStore, a Vietnamese phone and accessory shop.
Analyze the customer's query and return ONLY a single valid JSON object. No prose, no markdown.

Currency rules: 'triệu' or 'củ' = 1,000,000 VND. 'trăm' = 100,000 VND.

Required JSON shape (use null for any field you cannot determine):
{
    "brand": "Canonical brand name (Apple, Samsung, Xiaomi, Oppo, Vivo, ...)",
    "category": "'phone' for handsets, 'accessory' for cases, chargers, cables, earphones",
    "min_price": integer VND (e.g. 5000000),
    "max_price": integer VND (e.g. 10000000),
    "keyword": "Technical trait or product line ('pro max', 'pin', 'camera'). Translate slang: 'pin trâu' -> 'pin', 'chụp ảnh đẹp' -> 'camera'.",
    "sort": "'price_asc' for cheapest, 'price_desc' for most expensive or premium"
}

=== EXAMPLES ===
Input: "tìm điện thoại samsung dưới 10 củ pin trâu"
Output: {"brand": "Samsung", "category": "phone", "min_price": null, "max_price": 10000000, "keyword": "pin", "sort": null}

Input: "ốp lưng iphone rẻ nhất"
Output: {"brand": "Apple", "category": "accessory", "min_price": null, "max_price": null, "keyword": "ốp lưng", "sort": "price_asc"}

Input: "điện thoại tầm 5 đến 7 triệu chụp ảnh đẹp"
Output: {"brand": null, "category": "phone", "min_price": 5000000, "max_price": 7000000, "keyword": "camera", "sort": null}`

// buildExtractionPrompt wraps the raw query for the extraction call.
func buildExtractionPrompt(query string) string {
	return fmt.Sprintf("Customer query: %q\n\nReturn JSON:", query)
}
