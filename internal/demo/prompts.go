package demo

const travelSystemPrompt = "You are a travel expert who recommends unique destinations and unforgettable experiences."

const travelGreeting = "Hello! I'm your travel assistant. Where would you like to go?"

const travelRequest = "I want a different kind of vacation in Europe."

const startupPrompt = "Suggest an innovative idea for a tech startup focused on improving online education."

const functionCallingArticle = `Function calling in LLMs allows models to break through knowledge, execution, and skill walls.
Large Language Models have revolutionized how we interact with AI systems, but they face inherent limitations.
These models are trained on data up to a certain point in time, creating a knowledge wall that prevents them
from accessing real-time information. Additionally, they cannot execute code or interact with external systems
directly, forming an execution wall. Finally, they may lack specialized skills for domain-specific tasks,
creating a skill wall.

Function calling bridges these gaps by enabling LLMs to invoke external functions, access live data, execute
operations, and leverage specialized tools, transforming them from static text generators into dynamic, capable
AI agents that can solve complex real-world problems.

The implementation of function calling involves several key components. First, the model must understand the
available functions and their parameters through detailed function descriptions. Second, the model needs to
determine when to call a function based on user input and context. Third, the system must execute the function
call and return results to the model for further processing.

Popular frameworks like OpenAI's GPT models, Microsoft's Semantic Kernel, and Google's function calling APIs
provide robust implementations of this capability. These platforms allow developers to register custom functions,
define their schemas, and let the AI automatically decide when and how to use them.

The benefits of function calling extend beyond simple API interactions. They enable AI agents to perform complex
workflows, integrate with enterprise systems, handle multi-step reasoning tasks, and provide more accurate and
up-to-date responses. This technology is fundamental to building sophisticated AI applications that can interact
with the real world effectively and reliably.`

const currencyQuery = "Convert 500 USD to EUR, GBP, and JPY using current exchange rates. \n" +
	"Also get the current exchange rates for each conversion.\n" +
	"Present the results in a clear format and mention if real-time or fallback rates are used."

var sequentialQueries = []string{
	"Convert 1000 USD to EUR",
	"Convert 1000 USD to GBP",
	"Convert 1000 USD to JPY",
	"Get weather for London",
	"Get weather for Paris",
}

const parallelQuery = `Please perform these operations simultaneously:
1. Convert 1000 USD to EUR
2. Convert 1000 USD to GBP
3. Convert 1000 USD to JPY
4. Get current weather for London
5. Get current weather for Paris

Execute all these tasks and provide a summary of the results.`

var allowedQueries = []string{
	"Convert 500 USD to EUR",
	"Get weather for Madrid",
}

var blockedQueries = []string{
	"Convert 1000 USD to BTC",
	"Get weather for Pyongyang",
}

const largeAmountQuery = "Convert 500000 USD to EUR"

const complexQuery = `I need help with the following financial operations:
1. Convert 1000 USD to EUR
2. Convert 500 USD to BTC (this should be blocked)
3. Convert 2000 EUR to GBP
4. Get weather for London
5. Get weather for Tehran (this should be blocked)
6. Convert 750000 USD to JPY (this should trigger an alert)

Please process all these requests.`

const travelLoungePrompt = `Imagine a vibrant travel agency lounge inspired by the spirit of global adventure. The space features sleek, modern furniture with pops of color representing different continents, large world maps adorning the walls, and interactive digital displays showcasing breathtaking destinations.
Sunlight streams through panoramic windows, illuminating travel memorabilia, vintage suitcases, and shelves filled with guidebooks and souvenirs. The atmosphere is energetic yet welcoming, encouraging visitors to dream, plan, and embark on their next unforgettable journey.
Cozy nooks with plush seating invite guests to relax and discuss travel ideas, while a central coffee bar offers international treats and beverages. The overall design celebrates exploration, curiosity, and the joy of discovering new places.`
